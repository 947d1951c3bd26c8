package search

import (
	"time"

	"github.com/poiesic/mediasearch/core"
)

// FallbackWarning is attached to responses built without the record store.
const FallbackWarning = "record store lookup failed; results carry limited information"

// Item is one entry of Response.Videos, either a *Video or a *FallbackVideo.
type Item interface {
	VideoID() string
}

// Video is a fully joined result.
type Video struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Introduction string         `json:"introduction"`
	Description  string         `json:"description"`
	ThumbnailURL string         `json:"thumbnailUrl"`
	VideoURL     string         `json:"videoUrl"`
	UserID       string         `json:"userId"`
	User         map[string]any `json:"user"`
	ViewCount    int64          `json:"viewCount"`
	LikeCount    int64          `json:"likeCount"`
	CreatedAt    string         `json:"createdAt"`
	Duration     float64        `json:"duration"`
}

func (v *Video) VideoID() string { return v.ID }

// FallbackVideo is a result built from index metadata alone.
type FallbackVideo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	CreatedAt  string  `json:"createdAt"`
	Similarity float32 `json:"similarity"`
	Fallback   bool    `json:"_fallback"`
}

func (v *FallbackVideo) VideoID() string { return v.ID }

// Response is the body returned for a search.
// LastVisible is reserved for pagination and is always null.
type Response struct {
	Videos      []Item  `json:"videos"`
	LastVisible *string `json:"lastVisible"`
	TotalCount  int     `json:"totalCount"`
	Warning     string  `json:"_warning,omitempty"`
}

// Degraded reports whether the response was built without the record store.
func (r *Response) Degraded() bool {
	return r.Warning != ""
}

func newResponse(items []Item) *Response {
	if items == nil {
		items = []Item{}
	}
	return &Response{Videos: items, TotalCount: len(items)}
}

// videoFromRecord projects a record under id. Unset fields take their zero
// value; a missing createdAt is reported as now.
func videoFromRecord(id string, rec *core.Record, now time.Time) *Video {
	createdAt := now
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt
	}
	return &Video{
		ID:           id,
		Title:        rec.Title,
		Introduction: rec.Introduction,
		Description:  rec.Description,
		ThumbnailURL: rec.ThumbnailURL,
		VideoURL:     rec.VideoURL,
		UserID:       rec.UserID,
		User:         rec.User,
		ViewCount:    rec.ViewCount,
		LikeCount:    rec.LikeCount,
		CreatedAt:    core.FormatISO(createdAt),
		Duration:     rec.DurationOrZero(),
	}
}

func fallbackFromMatch(m *core.Match, now time.Time) *FallbackVideo {
	v := &FallbackVideo{
		ID:         m.ID,
		Title:      m.Metadata.Title,
		CreatedAt:  m.Metadata.CreatedAt,
		Similarity: m.Score,
		Fallback:   true,
	}
	if m.Metadata.Duration != nil {
		v.Duration = *m.Metadata.Duration
	}
	if v.CreatedAt == "" {
		v.CreatedAt = core.FormatISO(now)
	}
	return v
}
