package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a request rejected before touching the store.
var ErrInvalidInput = errors.New("invalid input")

// ParseError reports a visit record whose timestamp is not a valid instant.
type ParseError struct {
	BookmarkID string
	Value      string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid visit timestamp %q for bookmark %s: %v", e.Value, e.BookmarkID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RetrievalError reports that a page could not be fetched or parsed.
type RetrievalError struct {
	URL string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// StorageError wraps an I/O failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
