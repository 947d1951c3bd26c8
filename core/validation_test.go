package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestValidateRecord(t *testing.T) {
	created := time.Now().Add(-1 * time.Hour)

	tests := []struct {
		name            string
		record          *Record
		requireDuration bool
		wantErrs        []error
	}{
		{
			name: "valid record",
			record: &Record{
				ID:          "v1",
				Title:       "Title",
				Description: "Description",
				Duration:    Float64(120),
				CreatedAt:   created,
			},
		},
		{
			name: "valid record without duration",
			record: &Record{
				Title:       "Title",
				Description: "Description",
				CreatedAt:   created,
			},
		},
		{
			name: "zero duration is present when required",
			record: &Record{
				Title:       "Short clip",
				Description: "Under a minute",
				Duration:    Float64(0),
				CreatedAt:   created,
			},
			requireDuration: true,
		},
		{
			name: "missing duration when required",
			record: &Record{
				Title:       "Title",
				Description: "Description",
				CreatedAt:   created,
			},
			requireDuration: true,
			wantErrs:        []error{ErrMissingDuration},
		},
		{
			name:     "nil record",
			record:   nil,
			wantErrs: []error{ErrInvalidRecord},
		},
		{
			name: "missing title",
			record: &Record{
				Description: "Description",
				CreatedAt:   created,
			},
			wantErrs: []error{ErrMissingTitle},
		},
		{
			name: "missing description",
			record: &Record{
				Title:     "Title",
				CreatedAt: created,
			},
			wantErrs: []error{ErrMissingDescription},
		},
		{
			name: "missing createdAt",
			record: &Record{
				Title:       "Title",
				Description: "Description",
			},
			wantErrs: []error{ErrMissingCreatedAt},
		},
		{
			name:     "everything missing",
			record:   &Record{},
			wantErrs: []error{ErrMissingTitle, ErrMissingDescription, ErrMissingCreatedAt},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record, tt.requireDuration)
			if len(tt.wantErrs) == 0 {
				if err != nil {
					t.Errorf("ValidateRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error = %v, want wrapping %v", err, ErrInvalidRecord)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("ValidateRecord() error = %v, want wrapping %v", err, want)
				}
			}
		})
	}
}

func TestMissingFields(t *testing.T) {
	tests := []struct {
		name            string
		record          *Record
		requireDuration bool
		want            []string
	}{
		{
			name:   "nil record",
			record: nil,
			want:   []string{FieldTitle, FieldDescription, FieldCreatedAt},
		},
		{
			name:   "complete record",
			record: &Record{Title: "T", Description: "D", CreatedAt: time.Now()},
			want:   nil,
		},
		{
			name:            "duration required",
			record:          &Record{Title: "T", Description: "D", CreatedAt: time.Now()},
			requireDuration: true,
			want:            []string{FieldDuration},
		},
		{
			name:   "only title",
			record: &Record{Title: "T"},
			want:   []string{FieldDescription, FieldCreatedAt},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingFields(tt.record, tt.requireDuration)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MissingFields() = %v, want %v", got, tt.want)
			}
		})
	}
}
