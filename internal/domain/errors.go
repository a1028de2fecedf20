package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when the catalog file extension is not recognized
	ErrUnsupportedFormat = errors.New("unsupported catalog format")

	// ErrMalformedRecord is returned when a catalog record misses a required field or has an invalid price
	ErrMalformedRecord = errors.New("malformed catalog record")

	// ErrAuthenticationFailure is returned when the portal rejects the login
	ErrAuthenticationFailure = errors.New("portal authentication failed")

	// ErrListingFailure is returned when the opportunity listing cannot be read
	ErrListingFailure = errors.New("opportunity listing failed")

	// ErrSubmissionFailure is returned when the portal rejects or fails an offer
	ErrSubmissionFailure = errors.New("offer submission failed")

	// ErrAttachmentMissing is reported when an expected image or datasheet file is absent
	ErrAttachmentMissing = errors.New("attachment missing")

	// ErrLogWriteFailure is returned when a submission happened but its log record was not persisted
	ErrLogWriteFailure = errors.New("submission log write failed")

	// ErrDuplicateSubmission is returned when the ledger already holds an offer
	ErrDuplicateSubmission = errors.New("offer already submitted")

	// ErrSequenceConsumed is returned when an opportunity listing is iterated twice
	ErrSequenceConsumed = errors.New("opportunity sequence already consumed")

	// ErrUnknownPortal is returned when no adapter is configured for a portal name
	ErrUnknownPortal = errors.New("unknown portal")

	// ErrRunInProgress is returned when a bidding session is already running
	ErrRunInProgress = errors.New("bidding session already in progress")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)

// MalformedRecordError names the offending record and field.
// Row is 1-based over data records; row 0 is the CSV header.
type MalformedRecordError struct {
	Source string
	Row    int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: row %d: field %q: %s", e.Source, e.Row, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedRecord) hold for every MalformedRecordError
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
