package ai

import "errors"

var (
	// ErrEmbedding is returned when the embedding service fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyText is returned when asked to embed empty text.
	ErrEmptyText = errors.New("text is empty")

	// ErrNoEmbedding is returned when the service answers without a usable vector.
	ErrNoEmbedding = errors.New("no embedding returned")

	// ErrUnknownProvider is returned for an unrecognised Config.Provider.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)
