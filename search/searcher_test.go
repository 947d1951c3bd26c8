package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/ai/mock"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/ingestion"
	"github.com/poiesic/mediasearch/storage"
	"github.com/poiesic/mediasearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// countingLookup counts calls and can be switched to fail.
type countingLookup struct {
	storage.RecordLookup
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingLookup) GetByIDs(ctx context.Context, collection string, ids []string) (map[string]*core.Record, error) {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.RecordLookup.GetByIDs(ctx, collection, ids)
}

type fixture struct {
	index    storage.VectorIndex
	store    storage.RecordStore
	lookup   *countingLookup
	embedder *mock.MockEmbedder
	searcher *Searcher
}

// newFixture builds a searcher over in-memory stores. The embedder maps
// every query to the unit x axis.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	index, store, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	f := &fixture{
		index:  index,
		store:  store,
		lookup: &countingLookup{RecordLookup: store},
		embedder: mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		}),
	}
	f.searcher, err = NewSearcher(f.embedder, f.index, f.lookup, opts...)
	require.NoError(t, err)
	f.searcher.now = func() time.Time { return fixedNow }
	return f
}

// add stores a record and indexes it under vector.
func (f *fixture) add(t *testing.T, id string, vector []float32, duration *float64, createdAt time.Time) *core.Record {
	t.Helper()
	ctx := context.Background()
	rec := &core.Record{
		ID:           id,
		Title:        "title " + id,
		Description:  "description " + id,
		Introduction: "intro " + id,
		Duration:     duration,
		CreatedAt:    createdAt,
		ThumbnailURL: "https://cdn.example.com/" + id + ".jpg",
		VideoURL:     "https://cdn.example.com/" + id + ".mp4",
		UserID:       "u-" + id,
		User:         map[string]any{"name": "user " + id},
		ViewCount:    10,
		LikeCount:    2,
	}
	_, err := f.store.PutRecords(ctx, DefaultCollection, rec)
	require.NoError(t, err)
	require.NoError(t, f.index.Upsert(ctx, &core.IndexedEntry{
		ID:       id,
		Vector:   vector,
		Metadata: core.MetadataFromRecord(rec),
	}))
	return rec
}

func ids(resp *Response) []string {
	out := make([]string, len(resp.Videos))
	for i, v := range resp.Videos {
		out[i] = v.VideoID()
	}
	return out
}

var t2023 = time.Date(2023, 3, 15, 10, 0, 0, 0, time.UTC)

func TestNewSearcher(t *testing.T) {
	index, store, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, index, store)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
		assert.Equal(t, DefaultCollection, searcher.collection)
		assert.Equal(t, DefaultMaxLimit, searcher.maxLimit)
	})

	t.Run("with options", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, index, store,
			WithLogger(slog.Default()),
			WithCollection("clips"),
			WithMaxLimit(50),
			WithLookupBatchSize(5),
		)
		require.NoError(t, err)
		assert.Equal(t, "clips", searcher.collection)
		assert.Equal(t, 50, searcher.maxLimit)
		assert.Equal(t, 5, searcher.joiner.batchSize)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, index, store, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewSearcher(embedder, index, store, WithLookupBatchSize(11))
		assert.ErrorIs(t, err, ErrInvalidBatchSize)

		_, err = NewSearcher(embedder, index, store, WithMaxLimit(0))
		assert.Error(t, err)

		_, err = NewSearcher(embedder, index, store, WithCollection(""))
		assert.Error(t, err)
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewSearcher(nil, index, store)
		assert.Equal(t, ErrEmbedderRequired, err)

		_, err = NewSearcher(embedder, nil, store)
		assert.Equal(t, ErrIndexRequired, err)

		_, err = NewSearcher(embedder, index, nil)
		assert.Equal(t, ErrRecordLookupRequired, err)
	})
}

func TestSearcher_QueryRequired(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"", "   "} {
		resp, err := f.searcher.Search(context.Background(), Request{Query: q})
		assert.ErrorIs(t, err, ErrQueryRequired)
		assert.Nil(t, resp)
	}
	assert.Equal(t, 0, f.embedder.CallCount())
}

func TestSearcher_PreservesRankOrder(t *testing.T) {
	f := newFixture(t)
	// Inserted out of rank order on purpose; ids sort differently too.
	f.add(t, "a-far", []float32{0.1, 1, 0}, nil, t2023)
	f.add(t, "z-best", []float32{1, 0, 0}, nil, t2023)
	f.add(t, "m-mid", []float32{0.7, 0.7, 0}, nil, t2023)
	f.add(t, "b-good", []float32{1, 0.2, 0}, nil, t2023)

	resp, err := f.searcher.Search(context.Background(), Request{Query: "anything"})
	require.NoError(t, err)

	assert.Equal(t, []string{"z-best", "b-good", "m-mid", "a-far"}, ids(resp))
	assert.Equal(t, 4, resp.TotalCount)
	assert.False(t, resp.Degraded())
	assert.Nil(t, resp.LastVisible)
}

func TestSearcher_ProjectsFullRecords(t *testing.T) {
	f := newFixture(t)
	rec := f.add(t, "v1", []float32{1, 0, 0}, core.Float64(95.5), t2023)

	resp, err := f.searcher.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Videos, 1)

	video, ok := resp.Videos[0].(*Video)
	require.True(t, ok)
	assert.Equal(t, &Video{
		ID:           "v1",
		Title:        rec.Title,
		Introduction: rec.Introduction,
		Description:  rec.Description,
		ThumbnailURL: rec.ThumbnailURL,
		VideoURL:     rec.VideoURL,
		UserID:       rec.UserID,
		User:         map[string]any{"name": "user v1"},
		ViewCount:    10,
		LikeCount:    2,
		CreatedAt:    "2023-03-15T10:00:00.000Z",
		Duration:     95.5,
	}, video)
}

func TestSearcher_DropsStaleEntries(t *testing.T) {
	f := newFixture(t)
	f.add(t, "v1", []float32{1, 0, 0}, nil, t2023)
	require.NoError(t, f.index.Upsert(context.Background(), &core.IndexedEntry{
		ID:       "gone",
		Vector:   []float32{1, 0.1, 0},
		Metadata: core.Metadata{Title: "deleted", CreatedAt: "2023-01-01T00:00:00.000Z"},
	}))

	resp, err := f.searcher.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, []string{"v1"}, ids(resp))
	assert.Equal(t, 1, resp.TotalCount)
}

func TestSearcher_ZeroMatchesSkipRecordStore(t *testing.T) {
	f := newFixture(t)

	resp, err := f.searcher.Search(context.Background(), Request{Query: "nothing indexed"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.lookup.calls)
	assert.Empty(t, resp.Videos)
	assert.NotNil(t, resp.Videos)
	assert.Equal(t, 0, resp.TotalCount)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"videos":[],"lastVisible":null,"totalCount":0}`, string(body))
}

func TestSearcher_LimitHandling(t *testing.T) {
	f := newFixture(t, WithMaxLimit(12))
	for i := range 15 {
		f.add(t, string(rune('a'+i)), []float32{1, float32(i) / 10, 0}, nil, t2023)
	}
	ctx := context.Background()

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "explicit", limit: 3, want: 3},
		{name: "zero uses default", limit: 0, want: DefaultLimit},
		{name: "negative uses default", limit: -5, want: DefaultLimit},
		{name: "clamped to max", limit: 500, want: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.searcher.Search(ctx, Request{Query: "q", Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, resp.Videos, tt.want)
		})
	}
}

func TestSearcher_Filters(t *testing.T) {
	f := newFixture(t)
	f.add(t, "short", []float32{1, 0, 0}, core.Float64(30), time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	f.add(t, "medium", []float32{1, 0.1, 0}, core.Float64(120), time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
	f.add(t, "long", []float32{1, 0.2, 0}, core.Float64(600), time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC))
	f.add(t, "unknown", []float32{1, 0.3, 0}, nil, time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tests := []struct {
		name   string
		filter core.SearchFilter
		want   []string
	}{
		{
			name:   "no filter",
			filter: core.SearchFilter{},
			want:   []string{"short", "medium", "long", "unknown"},
		},
		{
			name:   "duration range",
			filter: core.SearchFilter{Duration: core.Range[float64]{Min: core.Some(60.0), Max: core.Some(300.0)}},
			want:   []string{"medium"},
		},
		{
			name:   "start date only",
			filter: core.SearchFilter{CreatedAt: core.Range[time.Time]{Min: core.Some(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))}},
			want:   []string{"medium", "long", "unknown"},
		},
		{
			name: "both dimensions",
			filter: core.SearchFilter{
				Duration:  core.Range[float64]{Min: core.Some(100.0)},
				CreatedAt: core.Range[time.Time]{Max: core.Some(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))},
			},
			want: []string{"medium"},
		},
		{
			name:   "inverted duration range is empty, not an error",
			filter: core.SearchFilter{Duration: core.Range[float64]{Min: core.Some(300.0), Max: core.Some(60.0)}},
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.searcher.Search(ctx, Request{Query: "q", Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(resp))
			assert.Equal(t, len(tt.want), resp.TotalCount)
			assert.Nil(t, resp.LastVisible)
		})
	}
}

func TestSearcher_DegradesWhenRecordStoreFails(t *testing.T) {
	f := newFixture(t)
	f.add(t, "v1", []float32{1, 0, 0}, core.Float64(120), t2023)
	f.add(t, "v2", []float32{1, 0.5, 0}, nil, t2023)
	f.add(t, "v3", []float32{0, 1, 0}, core.Float64(0), t2023)
	f.lookup.err = errors.New("firestore unavailable")

	resp, err := f.searcher.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	assert.True(t, resp.Degraded())
	assert.NotEmpty(t, resp.Warning)
	assert.Equal(t, []string{"v1", "v2", "v3"}, ids(resp))
	assert.Equal(t, 3, resp.TotalCount)

	for _, item := range resp.Videos {
		fb, ok := item.(*FallbackVideo)
		require.True(t, ok)
		assert.True(t, fb.Fallback)
		assert.Equal(t, "title "+fb.ID, fb.Title)
		assert.Equal(t, "2023-03-15T10:00:00.000Z", fb.CreatedAt)
	}

	first := resp.Videos[0].(*FallbackVideo)
	assert.Equal(t, 120.0, first.Duration)
	assert.InDelta(t, 1.0, first.Similarity, 1e-5)
	assert.Equal(t, 0.0, resp.Videos[1].(*FallbackVideo).Duration)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Nil(t, decoded["lastVisible"])
	assert.Contains(t, decoded, "lastVisible")
	assert.Equal(t, FallbackWarning, decoded["_warning"])
	for _, v := range decoded["videos"].([]any) {
		item := v.(map[string]any)
		assert.Equal(t, true, item["_fallback"])
		assert.ElementsMatch(t,
			[]string{"id", "title", "duration", "createdAt", "similarity", "_fallback"},
			keys(item))
	}
}

func TestSearcher_FallbackFillsMissingCreatedAt(t *testing.T) {
	now := fixedNow
	fb := fallbackFromMatch(&core.Match{ID: "x", Score: 0.5}, now)

	assert.Equal(t, "2024-06-01T12:00:00.000Z", fb.CreatedAt)
	assert.Equal(t, "", fb.Title)
	assert.Equal(t, 0.0, fb.Duration)
	assert.True(t, fb.Fallback)
}

func TestSearcher_FullResponseShape(t *testing.T) {
	f := newFixture(t)
	f.add(t, "v1", []float32{1, 0, 0}, nil, t2023)

	resp, err := f.searcher.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.ElementsMatch(t, []string{"videos", "lastVisible", "totalCount"}, keys(decoded))
	videos := decoded["videos"].([]any)
	require.Len(t, videos, 1)
	assert.ElementsMatch(t, []string{
		"id", "title", "introduction", "description", "thumbnailUrl", "videoUrl",
		"userId", "user", "viewCount", "likeCount", "createdAt", "duration",
	}, keys(videos[0].(map[string]any)))
	assert.Equal(t, 0.0, videos[0].(map[string]any)["duration"])
}

func TestSearcher_UpstreamFailuresAreTerminal(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		f := newFixture(t)
		f.add(t, "v1", []float32{1, 0, 0}, nil, t2023)
		f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("rate limited")
		}

		resp, err := f.searcher.Search(context.Background(), Request{Query: "q"})
		assert.ErrorIs(t, err, ai.ErrEmbedding)
		assert.Nil(t, resp)
		assert.Equal(t, 0, f.lookup.calls)
	})

	t.Run("empty embedding", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, nil
		}

		_, err := f.searcher.Search(context.Background(), Request{Query: "q"})
		assert.ErrorIs(t, err, ai.ErrNoEmbedding)
	})

	t.Run("index failure", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.index = failingIndex{f.index}

		resp, err := f.searcher.Search(context.Background(), Request{Query: "q"})
		assert.ErrorIs(t, err, storage.ErrIndexQuery)
		assert.Nil(t, resp)
		assert.Equal(t, 0, f.lookup.calls)
	})
}

type failingIndex struct {
	storage.VectorIndex
}

func (failingIndex) Query(ctx context.Context, vector []float32, topK int, filter storage.Filter) ([]*core.Match, error) {
	return nil, errors.New("connection refused")
}

func TestSearcher_IngestThenSearch(t *testing.T) {
	index, store, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	ingester, err := ingestion.NewIngester(embedder, index)
	require.NoError(t, err)
	searcher, err := NewSearcher(embedder, index, store)
	require.NoError(t, err)

	t0 := time.Date(2023, 4, 2, 8, 30, 0, 0, time.UTC)
	records := []*core.Record{
		{ID: "v1", Title: "T", Description: "D", Duration: core.Float64(120), CreatedAt: t0},
		{ID: "v2", Title: "Other", Description: "something unrelated", CreatedAt: t0},
	}
	_, err = store.PutRecords(ctx, DefaultCollection, records...)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, ingester.Process(ctx, rec.ID, rec))
	}

	resp, err := searcher.Search(ctx, Request{Query: "D", Limit: 1})
	require.NoError(t, err)

	require.Len(t, resp.Videos, 1)
	video := resp.Videos[0].(*Video)
	assert.Equal(t, "v1", video.ID)
	assert.Equal(t, "T", video.Title)
	assert.Equal(t, 120.0, video.Duration)
	assert.Equal(t, "2023-04-02T08:30:00.000Z", video.CreatedAt)
	assert.Equal(t, 1, resp.TotalCount)
}

type recordingMonitor struct {
	stages []string
	degErr error
}

func (m *recordingMonitor) Start(req Request)          { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterEmbedding(dims int)    { m.stages = append(m.stages, "embedded") }
func (m *recordingMonitor) AfterMatch(_ []*core.Match) { m.stages = append(m.stages, "matched") }
func (m *recordingMonitor) Finish(_ *Response)         { m.stages = append(m.stages, "finish") }
func (m *recordingMonitor) AfterEnrichment(_ map[string]*core.Record) {
	m.stages = append(m.stages, "enriched")
}
func (m *recordingMonitor) Degraded(err error) {
	m.degErr = err
	m.stages = append(m.stages, "degraded")
}

func TestSearcher_Monitor(t *testing.T) {
	f := newFixture(t)
	f.add(t, "v1", []float32{1, 0, 0}, nil, t2023)
	ctx := context.Background()

	m := &recordingMonitor{}
	_, err := f.searcher.SearchWithMonitor(ctx, Request{Query: "q"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "embedded", "matched", "enriched", "finish"}, m.stages)

	boom := errors.New("down")
	f.lookup.err = boom
	m = &recordingMonitor{}
	_, err = f.searcher.SearchWithMonitor(ctx, Request{Query: "q"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "embedded", "matched", "degraded", "finish"}, m.stages)
	assert.ErrorIs(t, m.degErr, boom)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
