package reservation

import (
	"errors"
	"fmt"

	"staybook/internal/domain/channel"
)

// DatesUnavailableError is a date-clash conflict carrying the reservation
// that already holds the range, so callers can act on it.
type DatesUnavailableError struct {
	PropertyID    string
	ConflictingID ID
}

func (e *DatesUnavailableError) Error() string {
	if e.ConflictingID == "" {
		return fmt.Sprintf("reservation: dates unavailable on property %s", e.PropertyID)
	}
	return fmt.Sprintf("reservation: dates unavailable on property %s, held by %s", e.PropertyID, e.ConflictingID)
}

// DuplicateImportError reports a repeated (source, externalId) import and
// references the reservation created by the first import.
type DuplicateImportError struct {
	Source     channel.Source
	ExternalID string
	ExistingID ID
}

func (e *DuplicateImportError) Error() string {
	return fmt.Sprintf("reservation: %s booking %s already imported as %s", e.Source, e.ExternalID, e.ExistingID)
}

func (e *DuplicateImportError) Is(target error) bool {
	return target == ErrDuplicateExternalID
}

// IsConflict reports whether the error is a business conflict (date clash
// or duplicate import) rather than an unexpected failure.
func IsConflict(err error) bool {
	var dates *DatesUnavailableError
	var dup *DuplicateImportError
	return errors.As(err, &dates) || errors.As(err, &dup)
}
