package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus_AllowedTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		action Action
		want   Status
	}{
		{"accept new", StatusNew, ActionAccept, StatusInProgress},
		{"reject new", StatusNew, ActionReject, StatusRejected},
		{"complete in progress", StatusInProgress, ActionComplete, StatusCompleted},
		{"reject in progress", StatusInProgress, ActionReject, StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStatus(tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatus_RejectedTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		action Action
	}{
		{"complete new", StatusNew, ActionComplete},
		{"accept in progress", StatusInProgress, ActionAccept},
		{"accept completed", StatusCompleted, ActionAccept},
		{"complete completed", StatusCompleted, ActionComplete},
		{"reject completed", StatusCompleted, ActionReject},
		{"accept rejected", StatusRejected, ActionAccept},
		{"complete rejected", StatusRejected, ActionComplete},
		{"reject rejected", StatusRejected, ActionReject},
		{"unknown action", StatusNew, Action("archive")},
		{"unknown status", Status("lost"), ActionAccept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NextStatus(tt.from, tt.action)
			require.Error(t, err)

			var invalid *ErrInvalidTransition
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.from, invalid.From)
			assert.Equal(t, tt.action, invalid.Action)
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusNew.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusInProgress, StatusCompleted, StatusRejected} {
		assert.True(t, ValidStatus(s), string(s))
	}
	assert.False(t, ValidStatus(Status("")))
	assert.False(t, ValidStatus(Status("pending")))
}
