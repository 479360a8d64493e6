package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"tameer/internal/domain"
	"tameer/internal/events"
	"tameer/internal/metrics"
	"tameer/internal/models"
	"tameer/internal/session"

	"github.com/rs/zerolog"
)

// ErrNotAuthenticated gates every dashboard entry point behind an
// active session.
var ErrNotAuthenticated = errors.New("dashboard requires an authenticated session")

// FilterAll selects the full snapshot in FilterByStatus.
const FilterAll = "all"

// Dashboard is the staff triage flow. It keeps an in-memory snapshot
// of the requests, refreshes it on change notifications, and applies
// status transitions optimistically with rollback on store failure.
type Dashboard struct {
	store  domain.RequestStore
	gate   session.Gate
	logger *zerolog.Logger

	mu       sync.RWMutex
	requests []models.ServiceRequest
	stats    models.Stats
	lastErr  error

	sub    *events.Subscription
	reload chan struct{}
}

func New(requestStore domain.RequestStore, gate session.Gate, logger *zerolog.Logger) *Dashboard {
	return &Dashboard{
		store:  requestStore,
		gate:   gate,
		logger: logger,
		reload: make(chan struct{}, 1),
	}
}

// Initialize loads all requests plus stats and establishes the change
// subscription. Callers without an active session are turned away
// before any store access.
func (d *Dashboard) Initialize(ctx context.Context) error {
	if !d.gate.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}

	if err := d.Refresh(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sub == nil {
		// The callback is only a "something changed" poke. The slot
		// coalesces bursts and duplicate deliveries into one reload.
		d.sub = d.store.Subscribe(func(_ *events.Event) error {
			select {
			case d.reload <- struct{}{}:
			default:
			}
			return nil
		})
	}
	return nil
}

// Run consumes change notifications until ctx is done. A notification
// triggers a full reload; results merge as last write observed wins.
func (d *Dashboard) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.reload:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn().Err(err).Msg("refresh after change notification failed")
			}
		}
	}
}

// Refresh re-runs the full list+stats load. Idempotent; safe to call
// concurrently with a subscription-triggered refresh.
func (d *Dashboard) Refresh(ctx context.Context) error {
	requests, err := d.store.ListAll(ctx)
	if err != nil {
		d.setConnectionError(err)
		return err
	}

	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.setConnectionError(err)
		return err
	}

	d.mu.Lock()
	d.requests = requests
	d.stats = stats
	d.lastErr = nil
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) setConnectionError(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	d.logger.Error().Err(err).Msg("dashboard load failed")
}

// ConnectionError returns the failure from the last load, or nil when
// the dashboard is healthy. The UI renders it as a retryable banner.
func (d *Dashboard) ConnectionError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Requests returns a copy of the current snapshot, newest first.
func (d *Dashboard) Requests() []models.ServiceRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.ServiceRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

// Stats returns the aggregate counts from the last load.
func (d *Dashboard) Stats() models.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// FilterByStatus selects from the loaded snapshot without touching the
// store. FilterAll returns the full set unmodified; otherwise exactly
// the subset with a matching status, preserving relative order.
func (d *Dashboard) FilterByStatus(status string) []models.ServiceRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if status == FilterAll || status == "" {
		out := make([]models.ServiceRequest, len(d.requests))
		copy(out, d.requests)
		return out
	}

	var out []models.ServiceRequest
	for _, req := range d.requests {
		if string(req.Status) == status {
			out = append(out, req)
		}
	}
	return out
}

// ApplyAction drives the status state machine for one request: apply
// to the local shadow copy, persist, and on failure restore the prior
// value and surface the error. Stats refresh after every applied
// action.
func (d *Dashboard) ApplyAction(ctx context.Context, requestID string, action models.Action) (*models.ServiceRequest, error) {
	if !d.gate.IsAuthenticated(ctx) {
		return nil, ErrNotAuthenticated
	}

	d.mu.Lock()
	idx := -1
	for i := range d.requests {
		if d.requests[i].RequestID == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return nil, &notFoundInSnapshot{requestID: requestID}
	}

	prior := d.requests[idx]
	next, err := models.NextStatus(prior.Status, action)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}

	// Tentative apply; confirmed or reverted below.
	d.requests[idx].Status = next
	d.requests[idx].UpdatedAt = time.Now().UTC()
	d.mu.Unlock()

	updated, err := d.store.UpdateStatus(ctx, requestID, next)
	if err != nil {
		d.mu.Lock()
		if idx < len(d.requests) && d.requests[idx].RequestID == requestID {
			d.requests[idx] = prior
		}
		d.mu.Unlock()
		d.logger.Error().Err(err).Str("request_id", requestID).Str("action", string(action)).Msg("status update failed, rolled back")
		return nil, err
	}

	d.mu.Lock()
	if idx < len(d.requests) && d.requests[idx].RequestID == requestID {
		d.requests[idx] = *updated
	}
	d.mu.Unlock()

	metrics.IncTransition(string(action))

	if stats, statsErr := d.store.Stats(ctx); statsErr == nil {
		d.mu.Lock()
		d.stats = stats
		d.mu.Unlock()
	}

	return updated, nil
}

// Release drops the change subscription. Called on logout; safe to
// call repeatedly.
func (d *Dashboard) Release() {
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.mu.Unlock()
	d.store.Unsubscribe(sub)
}

type notFoundInSnapshot struct {
	requestID string
}

func (e *notFoundInSnapshot) Error() string {
	return "request " + e.requestID + " is not in the loaded snapshot"
}
