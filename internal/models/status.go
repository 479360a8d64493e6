package models

import "fmt"

// Status is the triage state of a request. Values are the Arabic
// display strings persisted in the store.
type Status string

const (
	StatusNew        Status = "جديد"
	StatusInProgress Status = "قيد التنفيذ"
	StatusCompleted  Status = "مكتمل"
	StatusRejected   Status = "مرفوض"
)

// Action is a staff triage operation applied to a request.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionComplete Action = "complete"
	ActionReject   Action = "reject"
)

// ErrInvalidTransition reports a triage action that the lifecycle does
// not allow. Completed and rejected requests never change again.
type ErrInvalidTransition struct {
	From   Status
	Action Action
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("action %q is not allowed for status %q", e.Action, e.From)
}

// ValidStatus reports whether s is one of the four lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further action may change the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// NextStatus applies the lifecycle table:
//
//	جديد        --accept-->   قيد التنفيذ
//	جديد        --reject-->   مرفوض
//	قيد التنفيذ --complete--> مكتمل
//	قيد التنفيذ --reject-->   مرفوض
//
// Anything else is rejected explicitly; an undefined action is never a
// silent no-op and never a silent transition.
func NextStatus(from Status, action Action) (Status, error) {
	switch from {
	case StatusNew:
		switch action {
		case ActionAccept:
			return StatusInProgress, nil
		case ActionReject:
			return StatusRejected, nil
		}
	case StatusInProgress:
		switch action {
		case ActionComplete:
			return StatusCompleted, nil
		case ActionReject:
			return StatusRejected, nil
		}
	}
	return "", &ErrInvalidTransition{From: from, Action: action}
}
