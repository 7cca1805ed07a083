package catalog

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds surfaced by the catalog.
var (
	// ErrValidation indicates malformed or missing input
	ErrValidation = errors.New("validation failed")

	// ErrRecordNotFound indicates no record exists for an id
	ErrRecordNotFound = errors.New("record not found")

	// ErrBlobNotFound indicates the blob is missing from the blob store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrSizeLimitExceeded indicates the uploaded content is larger than allowed
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrStorageFailure indicates an I/O or serialization failure in either store
	ErrStorageFailure = errors.New("storage failure")

	// ErrDuplicateRecord indicates an insert with an id already in the catalog
	ErrDuplicateRecord = errors.New("duplicate record")
)

// IsNotFound reports whether err is a record-level or blob-level not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrBlobNotFound)
}

// ValidationError wraps ErrValidation with a reason.
func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RecordError represents an error related to a catalog record operation
type RecordError struct {
	ID  uuid.UUID
	Op  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record operation %s failed for record %s: %v", e.Op, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// StorageError represents an I/O failure in a blob or metadata backend.
// It always matches ErrStorageFailure.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage operation %s failed on backend %s: %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}
