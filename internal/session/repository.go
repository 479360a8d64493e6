package session

import (
	"context"
	"sync"
)

// Repository persists the two process-wide records the client
// environment keeps across page loads: the authenticated-session flag
// and the optional remembered-credentials record.
type Repository interface {
	SetSession(ctx context.Context, active bool) error
	Session(ctx context.Context) (bool, error)
	SaveCredentials(ctx context.Context, creds *Credentials) error
	Credentials(ctx context.Context) (*Credentials, error)
	ClearCredentials(ctx context.Context) error
}

// MemoryRepository keeps the session records in process memory. Used
// standalone in tests and as the fallback behind Redis.
type MemoryRepository struct {
	mu       sync.RWMutex
	active   bool
	remember *Credentials
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) SetSession(ctx context.Context, active bool) error {
	r.mu.Lock()
	r.active = active
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Session(ctx context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, nil
}

func (r *MemoryRepository) SaveCredentials(ctx context.Context, creds *Credentials) error {
	r.mu.Lock()
	c := *creds
	r.remember = &c
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Credentials(ctx context.Context) (*Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.remember == nil {
		return nil, nil
	}
	c := *r.remember
	return &c, nil
}

func (r *MemoryRepository) ClearCredentials(ctx context.Context) error {
	r.mu.Lock()
	r.remember = nil
	r.mu.Unlock()
	return nil
}
