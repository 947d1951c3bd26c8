package core

import (
	"errors"
	"fmt"
)

// Field names as they appear on the wire.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCreatedAt   = "createdAt"
	FieldDuration    = "duration"
)

// MissingFields returns the wire names of required fields absent from record.
// Title, description and createdAt are always required. Duration is only
// required when requireDuration is set; a zero duration counts as present.
func MissingFields(record *Record, requireDuration bool) []string {
	if record == nil {
		return []string{FieldTitle, FieldDescription, FieldCreatedAt}
	}

	var missing []string
	if record.Title == "" {
		missing = append(missing, FieldTitle)
	}
	if record.Description == "" {
		missing = append(missing, FieldDescription)
	}
	if record.CreatedAt.IsZero() {
		missing = append(missing, FieldCreatedAt)
	}
	if requireDuration && record.Duration == nil {
		missing = append(missing, FieldDuration)
	}
	return missing
}

// ValidateRecord validates a Record before it is indexed.
//
// Validation rules:
//   - Title must not be empty
//   - Description must not be empty
//   - CreatedAt must be set
//   - Duration must be set, only when requireDuration is true
//
// NOT validated (passthrough display fields):
//   - ThumbnailURL, VideoURL, UserID, User, counters
func ValidateRecord(record *Record, requireDuration bool) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	var errs []error
	for _, field := range MissingFields(record, requireDuration) {
		switch field {
		case FieldTitle:
			errs = append(errs, ErrMissingTitle)
		case FieldDescription:
			errs = append(errs, ErrMissingDescription)
		case FieldCreatedAt:
			errs = append(errs, ErrMissingCreatedAt)
		case FieldDuration:
			errs = append(errs, ErrMissingDuration)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRecord, errors.Join(errs...))
}
