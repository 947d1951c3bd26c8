package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

const (
	// DefaultLimit is used when a request does not ask for a positive limit.
	DefaultLimit = 10

	// DefaultMaxLimit caps the number of matches requested from the index.
	DefaultMaxLimit = 1000

	// DefaultCollection is the record store collection joined against.
	DefaultCollection = "videos"
)

// Request is a search request.
type Request struct {
	Query  string
	Limit  int
	Filter core.SearchFilter
}

// Searcher runs semantic searches over the vector index and joins the hits
// against the record store.
type Searcher struct {
	embedder   ai.Embedder
	index      storage.VectorIndex
	joiner     *Joiner
	collection string
	maxLimit   int
	batchSize  int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCollection sets the record store collection results are joined against.
// Default is DefaultCollection.
func WithCollection(collection string) Option {
	return func(s *Searcher) error {
		if collection == "" {
			return errors.New("collection must not be empty")
		}
		s.collection = collection
		return nil
	}
}

// WithMaxLimit caps the per-request limit.
// Default is DefaultMaxLimit.
func WithMaxLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit < 1 {
			return fmt.Errorf("max limit must be at least 1, got %d", limit)
		}
		s.maxLimit = limit
		return nil
	}
}

// WithLookupBatchSize sets the joiner batch size.
// Default is storage.MaxLookupBatch, which is also the upper bound.
func WithLookupBatchSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 || size > storage.MaxLookupBatch {
			return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidBatchSize, size, storage.MaxLookupBatch)
		}
		s.batchSize = size
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	embedder ai.Embedder,
	index storage.VectorIndex,
	lookup storage.RecordLookup,
	opts ...Option,
) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if lookup == nil {
		return nil, ErrRecordLookupRequired
	}

	s := &Searcher{
		embedder:   embedder,
		index:      index,
		collection: DefaultCollection,
		maxLimit:   DefaultMaxLimit,
		batchSize:  storage.MaxLookupBatch,
		now:        time.Now,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	joiner, err := NewJoiner(lookup, WithBatchSize(s.batchSize), WithJoinerLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.joiner = joiner

	return s, nil
}

// Search runs req and returns the ordered response.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	return s.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor runs req, reporting each stage to monitor.
//
// Errors are returned only for an empty query (ErrQueryRequired), an
// embedding failure (ai.ErrEmbedding) or an index failure
// (storage.ErrIndexQuery). A record store failure yields a degraded
// response instead.
func (s *Searcher) SearchWithMonitor(ctx context.Context, req Request, monitor SearchMonitor) (*Response, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	// RECEIVED
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, ErrQueryRequired
	}
	req.Limit = s.normalizeLimit(req.Limit)
	monitor.Start(req)
	s.logger.Debug("search received", "query", req.Query, "limit", req.Limit, "filtered", !req.Filter.IsEmpty())

	// EMBEDDED
	vector, err := s.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", req.Query, "err", err)
		if !errors.Is(err, ai.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", ai.ErrEmbedding, err)
		}
		return nil, err
	}
	if len(vector) == 0 {
		s.logger.Error("embedder returned an empty vector", "query", req.Query)
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbedding, ai.ErrNoEmbedding)
	}
	monitor.AfterEmbedding(len(vector))

	// MATCHED
	matches, err := s.index.Query(ctx, vector, req.Limit, TranslateFilter(req.Filter))
	if err != nil {
		s.logger.Error("error querying vector index", "err", err)
		if !errors.Is(err, storage.ErrIndexQuery) {
			err = fmt.Errorf("%w: %w", storage.ErrIndexQuery, err)
		}
		return nil, err
	}
	monitor.AfterMatch(matches)

	if len(matches) == 0 {
		resp := newResponse(nil)
		monitor.Finish(resp)
		return resp, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	// ENRICHED | DEGRADED
	records, err := s.joiner.FetchByIDs(ctx, s.collection, ids)
	if err != nil {
		s.logger.Warn("record lookup failed, serving index metadata", "matches", len(matches), "err", err)
		monitor.Degraded(err)
		resp := s.degraded(matches)
		monitor.Finish(resp)
		return resp, nil
	}
	monitor.AfterEnrichment(records)

	now := s.now()
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		rec, ok := records[id]
		if !ok {
			s.logger.Debug("dropping stale index entry", "id", id)
			continue
		}
		items = append(items, videoFromRecord(id, rec, now))
	}

	// RESPONDED
	resp := newResponse(items)
	monitor.Finish(resp)
	s.logger.Debug("search complete", "matches", len(matches), "results", resp.TotalCount)
	return resp, nil
}

func (s *Searcher) degraded(matches []*core.Match) *Response {
	now := s.now()
	items := make([]Item, len(matches))
	for i, m := range matches {
		items[i] = fallbackFromMatch(m, now)
	}
	resp := newResponse(items)
	resp.Warning = FallbackWarning
	return resp
}

func (s *Searcher) normalizeLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return min(limit, s.maxLimit)
}
