package ledger

import "fmt"

// StorageError wraps a failed ledger write or read. The store never retries;
// recovery belongs to the caller's own transaction or compensation logic.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
