package domain

import (
	"errors"
	"fmt"
)

// ErrTicketNotFound is returned when an operation references an unknown ticket id.
var ErrTicketNotFound = errors.New("ticket not found")

// StorageError reports that the ticket store could not complete a read or write.
type StorageError struct {
	// Op names the failed operation, e.g. "take ticket to work".
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to %s", e.Op)
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
