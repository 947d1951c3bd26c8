package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/ai/mock"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/search"
	"github.com/poiesic/mediasearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSearcher records the last request and returns canned results.
type stubSearcher struct {
	got  search.Request
	resp *search.Response
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if req.Query == "" {
		return nil, search.ErrQueryRequired
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &search.Response{Videos: []search.Item{}}, nil
}

func newTestServer(t *testing.T, searcher Searcher) *Server {
	t.Helper()
	s, err := New(searcher, WithRequestTimeout(time.Second))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	s, err := New(&stubSearcher{}, WithAddr(":9999"), WithShutdownTimeout(time.Second), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, ":9999", s.addr)
	assert.Equal(t, time.Second, s.shutdownTimeout)
	assert.NotNil(t, s.logger)
}

func TestSearch_GetParameters(t *testing.T) {
	stub := &stubSearcher{}
	s := newTestServer(t, stub)

	w, _ := do(t, s, http.MethodGet,
		"/search?query=cats&limit=5&minDuration=60&maxDuration=300&startDate=2023-01-01&endDate=2023-12-31T23:59:59Z", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "cats", stub.got.Query)
	assert.Equal(t, 5, stub.got.Limit)
	assert.Equal(t, core.Range[float64]{Min: core.Some(60.0), Max: core.Some(300.0)}, stub.got.Filter.Duration)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), stub.got.Filter.CreatedAt.Min.Value)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), stub.got.Filter.CreatedAt.Max.Value)
}

func TestSearch_GetDefaults(t *testing.T) {
	stub := &stubSearcher{}
	s := newTestServer(t, stub)

	w, _ := do(t, s, http.MethodGet, "/search?query=cats&limit=abc", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 0, stub.got.Limit, "malformed limit is left to the searcher default")
	assert.True(t, stub.got.Filter.IsEmpty())
}

func TestSearch_PostBody(t *testing.T) {
	stub := &stubSearcher{}
	s := newTestServer(t, stub)

	w, _ := do(t, s, http.MethodPost, "/search", `{
		"query": "cats",
		"limit": 7,
		"filters": {"minDuration": 0, "startDate": "2023-01-01"}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "cats", stub.got.Query)
	assert.Equal(t, 7, stub.got.Limit)
	assert.Equal(t, core.Some(0.0), stub.got.Filter.Duration.Min)
	assert.False(t, stub.got.Filter.Duration.Max.Set)
	assert.True(t, stub.got.Filter.CreatedAt.Min.Set)
	assert.False(t, stub.got.Filter.CreatedAt.Max.Set)
}

func TestSearch_PostDurationAsString(t *testing.T) {
	tests := []struct {
		name    string
		filters string
		min     core.Bound[float64]
		max     core.Bound[float64]
	}{
		{name: "numbers", filters: `{"minDuration": 60, "maxDuration": 300.5}`, min: core.Some(60.0), max: core.Some(300.5)},
		{name: "numeric strings", filters: `{"minDuration": "60", "maxDuration": " 300 "}`, min: core.Some(60.0), max: core.Some(300.0)},
		{name: "null and empty string", filters: `{"minDuration": null, "maxDuration": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSearcher{}
			s := newTestServer(t, stub)

			w, _ := do(t, s, http.MethodPost, "/search", `{"query": "cats", "filters": `+tt.filters+`}`)
			require.Equal(t, http.StatusOK, w.Code)

			assert.Equal(t, tt.min, stub.got.Filter.Duration.Min)
			assert.Equal(t, tt.max, stub.got.Filter.Duration.Max)
		})
	}
}

func TestSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "get without query", method: http.MethodGet, target: "/search"},
		{name: "post without query", method: http.MethodPost, target: "/search", body: `{"limit": 3}`},
		{name: "post with empty body", method: http.MethodPost, target: "/search"},
		{name: "malformed body", method: http.MethodPost, target: "/search", body: `{"query": `},
		{name: "non-numeric duration", method: http.MethodGet, target: "/search?query=x&minDuration=long"},
		{name: "bad start date", method: http.MethodGet, target: "/search?query=x&startDate=yesterday"},
		{name: "non-numeric duration string in body", method: http.MethodPost, target: "/search", body: `{"query":"x","filters":{"minDuration":"long"}}`},
		{name: "boolean duration in body", method: http.MethodPost, target: "/search", body: `{"query":"x","filters":{"maxDuration":true}}`},
		{name: "bad end date in body", method: http.MethodPost, target: "/search", body: `{"query":"x","filters":{"endDate":"31/12/2023"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubSearcher{})

			w, decoded := do(t, s, tt.method, tt.target, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decoded["error"])
			assert.NotContains(t, decoded, "message")
		})
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	stub := &stubSearcher{err: fmt.Errorf("%w: rate limited", ai.ErrEmbedding)}
	s := newTestServer(t, stub)

	w, decoded := do(t, s, http.MethodGet, "/search?query=cats", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, decoded["error"])
	assert.Contains(t, decoded["message"], "rate limited")
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &stubSearcher{})

	r := httptest.NewRequest(http.MethodDelete, "/search?query=x", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSearch_CORS(t *testing.T) {
	s := newTestServer(t, &stubSearcher{})

	r := httptest.NewRequest(http.MethodOptions, "/search", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	assert.Less(t, w.Code, 300)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubSearcher{})

	w, decoded := do(t, s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decoded["status"])
}

type failingLookup struct{}

func (failingLookup) GetByIDs(ctx context.Context, collection string, ids []string) (map[string]*core.Record, error) {
	return nil, errors.New("store offline")
}

func TestSearch_EndToEnd(t *testing.T) {
	index, store, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	rec := &core.Record{
		ID:          "v1",
		Title:       "T",
		Description: "D",
		Duration:    core.Float64(120),
		CreatedAt:   time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	_, err = store.PutRecords(ctx, search.DefaultCollection, rec)
	require.NoError(t, err)
	vec, err := embedder.EmbedText(ctx, rec.Description)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(ctx, &core.IndexedEntry{ID: rec.ID, Vector: vec, Metadata: core.MetadataFromRecord(rec)}))

	t.Run("enriched", func(t *testing.T) {
		searcher, err := search.NewSearcher(embedder, index, store)
		require.NoError(t, err)
		s := newTestServer(t, searcher)

		w, decoded := do(t, s, http.MethodGet, "/search?query=D&limit=1", "")
		require.Equal(t, http.StatusOK, w.Code)

		assert.Contains(t, decoded, "lastVisible")
		assert.Nil(t, decoded["lastVisible"])
		assert.Equal(t, 1.0, decoded["totalCount"])
		assert.NotContains(t, decoded, "_warning")
		videos := decoded["videos"].([]any)
		require.Len(t, videos, 1)
		video := videos[0].(map[string]any)
		assert.Equal(t, "v1", video["id"])
		assert.Equal(t, "", video["thumbnailUrl"])
		assert.Nil(t, video["user"])
		assert.Equal(t, 0.0, video["viewCount"])
	})

	t.Run("degraded", func(t *testing.T) {
		searcher, err := search.NewSearcher(embedder, index, failingLookup{})
		require.NoError(t, err)
		s := newTestServer(t, searcher)

		w, decoded := do(t, s, http.MethodPost, "/search", `{"query":"D"}`)
		require.Equal(t, http.StatusOK, w.Code)

		assert.NotEmpty(t, decoded["_warning"])
		videos := decoded["videos"].([]any)
		require.Len(t, videos, 1)
		video := videos[0].(map[string]any)
		assert.Equal(t, true, video["_fallback"])
		assert.Equal(t, 120.0, video["duration"])
		assert.Equal(t, "2023-01-10T00:00:00.000Z", video["createdAt"])
	})

	t.Run("empty filter window", func(t *testing.T) {
		searcher, err := search.NewSearcher(embedder, index, store)
		require.NoError(t, err)
		s := newTestServer(t, searcher)

		w, decoded := do(t, s, http.MethodGet, "/search?query=D&minDuration=300&maxDuration=60", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0.0, decoded["totalCount"])
		assert.Empty(t, decoded["videos"])
	})
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t, &stubSearcher{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
