package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/search"
)

// searchBody is the POST request body.
type searchBody struct {
	Query   string       `json:"query"`
	Limit   int          `json:"limit"`
	Filters *filtersBody `json:"filters"`
}

type filtersBody struct {
	MinDuration durationParam `json:"minDuration"`
	MaxDuration durationParam `json:"maxDuration"`
	StartDate   string        `json:"startDate"`
	EndDate     string        `json:"endDate"`
}

// durationParam is a duration bound given as a JSON number or a numeric
// string. null and "" leave it unset.
type durationParam struct {
	bound core.Bound[float64]
}

func (d *durationParam) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: duration must be a number, got %s", search.ErrInvalidFilter, raw)
	}
	d.bound = core.Some(v)
	return nil
}

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// parseRequest reads a search request from the query string (GET) or the
// JSON body (POST). Query presence is checked by the searcher.
func parseRequest(r *http.Request) (search.Request, error) {
	if r.Method == http.MethodPost {
		return parseBody(r)
	}
	return parseQuery(r.URL.Query())
}

func parseQuery(q url.Values) (search.Request, error) {
	req := search.Request{Query: q.Get("query")}

	// A malformed limit falls back to the default, like an absent one.
	if limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		req.Limit = limit
	}

	var err error
	if req.Filter.Duration.Min, err = numberParam(q, "minDuration"); err != nil {
		return req, err
	}
	if req.Filter.Duration.Max, err = numberParam(q, "maxDuration"); err != nil {
		return req, err
	}
	if req.Filter.CreatedAt.Min, err = dateBound("startDate", q.Get("startDate")); err != nil {
		return req, err
	}
	if req.Filter.CreatedAt.Max, err = dateBound("endDate", q.Get("endDate")); err != nil {
		return req, err
	}
	return req, nil
}

func numberParam(q url.Values, name string) (core.Bound[float64], error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return core.Bound[float64]{}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return core.Bound[float64]{}, fmt.Errorf("%w: %s must be a number, got %q", search.ErrInvalidFilter, name, raw)
	}
	return core.Some(v), nil
}

func dateBound(name, raw string) (core.Bound[time.Time], error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.Bound[time.Time]{}, nil
	}
	t, err := core.ParseDate(raw)
	if err != nil {
		return core.Bound[time.Time]{}, fmt.Errorf("%w: %s: %w", search.ErrInvalidFilter, name, err)
	}
	return core.Some(t), nil
}

func parseBody(r *http.Request) (search.Request, error) {
	var body searchBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, search.ErrInvalidFilter) {
			return search.Request{}, err
		}
		return search.Request{}, fmt.Errorf("%w: malformed request body: %w", errBadRequest, err)
	}

	req := search.Request{Query: body.Query, Limit: body.Limit}
	if f := body.Filters; f != nil {
		req.Filter.Duration.Min = f.MinDuration.bound
		req.Filter.Duration.Max = f.MaxDuration.bound
		var err error
		if req.Filter.CreatedAt.Min, err = dateBound("startDate", f.StartDate); err != nil {
			return req, err
		}
		if req.Filter.CreatedAt.Max, err = dateBound("endDate", f.EndDate); err != nil {
			return req, err
		}
	}
	return req, nil
}
