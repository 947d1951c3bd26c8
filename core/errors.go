package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrMissingTitle indicates the Title field is empty.
	ErrMissingTitle = errors.New("title is required")

	// ErrMissingDescription indicates the Description field is empty.
	ErrMissingDescription = errors.New("description is required")

	// ErrMissingCreatedAt indicates the CreatedAt timestamp is zero.
	ErrMissingCreatedAt = errors.New("createdAt is required")

	// ErrMissingDuration indicates Duration is unset while it is required.
	ErrMissingDuration = errors.New("duration is required")

	// ErrInvalidDate indicates a date string could not be parsed.
	ErrInvalidDate = errors.New("invalid date")
)
