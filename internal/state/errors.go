package state

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreIO is matched by every *FlushError.
	ErrStoreIO = errors.New("state: store I/O failure")
	// ErrClosed is returned when writing to a closed store.
	ErrClosed = errors.New("state: store is closed")
)

// FlushError reports a snapshot that could not be read or written.
type FlushError struct {
	Name string
	Path string
	Op   string
	Err  error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("state: %s %s (%s): %v", e.Op, e.Name, e.Path, e.Err)
}

func (e *FlushError) Unwrap() []error {
	return []error{ErrStoreIO, e.Err}
}
