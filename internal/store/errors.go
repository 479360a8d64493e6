package store

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every user-correctable input defect in a
// single failure, so the form can show the full list at once.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "الحقول المطلوبة مفقودة: " + strings.Join(e.Fields, ", ")
}

// StoreError is a transport, auth or write failure against the
// persistent table. It carries a human-readable database message and
// is always retryable from the caller's point of view.
type StoreError struct {
	Op      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotFoundError reports an update against a request id with no
// matching row.
type NotFoundError struct {
	RequestID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("request %s not found", e.RequestID)
}

func storeErr(op string, err error) *StoreError {
	return &StoreError{Op: op, Message: err.Error(), Err: err}
}
