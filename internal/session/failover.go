package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRepository serves from the primary (Redis) until it fails,
// then falls back to memory and probes the primary again after a
// minute. A lost session record on failover just means logging in
// again; acceptable for a single-operator back office.
type FailoverRepository struct {
	primary  Repository
	fallback Repository
	logger   *zerolog.Logger

	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverRepository(primary, fallback Repository, logger *zerolog.Logger) *FailoverRepository {
	return &FailoverRepository{primary: primary, fallback: fallback, logger: logger}
}

func (r *FailoverRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverRepository) shouldProbe() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverRepository) SetSession(ctx context.Context, active bool) error {
	if !r.isDown.Load() || r.shouldProbe() {
		err := r.primary.SetSession(ctx, active)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetSession(ctx, active)
}

func (r *FailoverRepository) Session(ctx context.Context) (bool, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		active, err := r.primary.Session(ctx)
		if err == nil {
			r.isDown.Store(false)
			return active, nil
		}
		r.markDown(err)
	}
	return r.fallback.Session(ctx)
}

func (r *FailoverRepository) SaveCredentials(ctx context.Context, creds *Credentials) error {
	if !r.isDown.Load() || r.shouldProbe() {
		err := r.primary.SaveCredentials(ctx, creds)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveCredentials(ctx, creds)
}

func (r *FailoverRepository) Credentials(ctx context.Context) (*Credentials, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		creds, err := r.primary.Credentials(ctx)
		if err == nil {
			r.isDown.Store(false)
			return creds, nil
		}
		r.markDown(err)
	}
	return r.fallback.Credentials(ctx)
}

func (r *FailoverRepository) ClearCredentials(ctx context.Context) error {
	if !r.isDown.Load() || r.shouldProbe() {
		err := r.primary.ClearCredentials(ctx)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearCredentials(ctx)
}
