package achievements

import (
	"errors"
	"fmt"
)

// ErrStorage is matched by every *StorageError via errors.Is.
var ErrStorage = errors.New("achievement storage failure")

// StorageError wraps a failed read or write of the unlock record.
type StorageError struct {
	Op  string // "load" or "save"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("achievements %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
