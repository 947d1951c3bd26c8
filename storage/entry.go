package storage

import (
	"fmt"

	"github.com/poiesic/mediasearch/core"
)

// CheckEntry enforces what every VectorIndex requires of an entry before
// writing it. Failures wrap ErrIndexWrite.
func CheckEntry(entry *core.IndexedEntry) error {
	switch {
	case entry == nil:
		return fmt.Errorf("%w: nil entry", ErrIndexWrite)
	case entry.ID == "":
		return fmt.Errorf("%w: entry has no id", ErrIndexWrite)
	case len(entry.Vector) == 0:
		return fmt.Errorf("%w: entry %s has no vector", ErrIndexWrite, entry.ID)
	case entry.Metadata.Title == "":
		return fmt.Errorf("%w: entry %s metadata lacks title", ErrIndexWrite, entry.ID)
	case entry.Metadata.CreatedAt == "":
		return fmt.Errorf("%w: entry %s metadata lacks createdAt", ErrIndexWrite, entry.ID)
	}
	return nil
}
