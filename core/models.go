package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ISO8601 is the layout used for every timestamp stored in index metadata
// or returned to clients. Values are always rendered in UTC.
const ISO8601 = "2006-01-02T15:04:05.000Z"

// FormatISO renders t as a UTC ISO-8601 string with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// ParseDate parses a date bound supplied by a client. Both plain dates
// ("2023-01-01", interpreted as midnight UTC) and RFC 3339 timestamps are accepted.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDate
}

// IDFromContent generates a deterministic record ID from text content using BLAKE2b hashing.
// Identical content always produces the identical ID.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Record is a media item held by the authoritative record store.
// The search core only reads records; it never writes them back.
type Record struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Introduction string         `json:"introduction,omitempty"`
	Duration     *float64       `json:"duration,omitempty"` // seconds, optional
	CreatedAt    time.Time      `json:"createdAt"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	VideoURL     string         `json:"videoUrl,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	User         map[string]any `json:"user,omitempty"`
	ViewCount    int64          `json:"viewCount,omitempty"`
	LikeCount    int64          `json:"likeCount,omitempty"`
}

// DurationOrZero returns the duration in seconds, or 0 when it is unset.
func (r *Record) DurationOrZero() float64 {
	if r.Duration == nil {
		return 0
	}
	return *r.Duration
}

// Metadata is the reduced projection of a Record stored next to its vector.
// It never carries the description.
type Metadata struct {
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration,omitempty"`
	CreatedAt string   `json:"createdAt"` // ISO-8601
}

// MetadataFromRecord projects a record onto index metadata.
func MetadataFromRecord(r *Record) Metadata {
	m := Metadata{
		Title:     r.Title,
		CreatedAt: FormatISO(r.CreatedAt),
	}
	if r.Duration != nil {
		d := *r.Duration
		m.Duration = &d
	}
	return m
}

// IndexedEntry is a vector stored in the vector index under the record's ID.
type IndexedEntry struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single similarity hit returned by the vector index.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Float64 returns a pointer to v. Handy for optional numeric fields.
func Float64(v float64) *float64 {
	return &v
}
