package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"tameer/internal/domain"
	"tameer/internal/models"
	"tameer/internal/session"
	"tameer/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	authed bool
}

func (g *fakeGate) Login(ctx context.Context, username, password string, remember bool) (bool, error) {
	g.authed = true
	return true, nil
}
func (g *fakeGate) Logout(ctx context.Context) error         { g.authed = false; return nil }
func (g *fakeGate) IsAuthenticated(ctx context.Context) bool { return g.authed }
func (g *fakeGate) Remembered(ctx context.Context) (*session.Credentials, error) {
	return nil, nil
}

func setupDashboard(t *testing.T, authed bool) (*Dashboard, *store.Store) {
	t.Helper()
	logger := zerolog.Nop()
	s, err := store.New(":memory:", nil, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return New(s, &fakeGate{authed: authed}, &logger), s
}

func seedRequest(t *testing.T, s domain.RequestStore) *models.ServiceRequest {
	t.Helper()
	created, err := s.Create(context.Background(), &models.ServiceRequest{
		Name:        "علي محمد",
		Phone:       "+249111111111",
		Location:    "الخرطوم",
		Address:     "حي الرياض",
		ServiceType: "ترميم المنازل",
		Urgency:     "متوسط",
		Description: "تصدعات في الجدار",
	})
	require.NoError(t, err)
	return created
}

func TestInitialize_RequiresSession(t *testing.T) {
	d, _ := setupDashboard(t, false)
	err := d.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInitialize_LoadsSnapshot(t *testing.T) {
	d, s := setupDashboard(t, true)
	ctx := context.Background()

	seedRequest(t, s)
	seedRequest(t, s)

	require.NoError(t, d.Initialize(ctx))
	assert.Len(t, d.Requests(), 2)
	assert.Equal(t, 2, d.Stats().Total)
	assert.NoError(t, d.ConnectionError())
}

func TestFilterByStatus(t *testing.T) {
	d, s := setupDashboard(t, true)
	ctx := context.Background()

	first := seedRequest(t, s)
	second := seedRequest(t, s)
	third := seedRequest(t, s)
	_, err := s.UpdateStatus(ctx, second.RequestID, models.StatusInProgress)
	require.NoError(t, err)

	require.NoError(t, d.Initialize(ctx))

	t.Run("all returns everything", func(t *testing.T) {
		all := d.FilterByStatus(FilterAll)
		assert.Len(t, all, 3)
	})

	t.Run("subset preserves newest-first order", func(t *testing.T) {
		newOnly := d.FilterByStatus(string(models.StatusNew))
		require.Len(t, newOnly, 2)
		assert.Equal(t, third.RequestID, newOnly[0].RequestID)
		assert.Equal(t, first.RequestID, newOnly[1].RequestID)
	})

	t.Run("no matches yields empty", func(t *testing.T) {
		assert.Empty(t, d.FilterByStatus(string(models.StatusCompleted)))
	})
}

func TestApplyAction_Lifecycle(t *testing.T) {
	d, s := setupDashboard(t, true)
	ctx := context.Background()

	created := seedRequest(t, s)
	require.NoError(t, d.Initialize(ctx))

	updated, err := d.ApplyAction(ctx, created.RequestID, models.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)

	updated, err = d.ApplyAction(ctx, created.RequestID, models.ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	t.Run("terminal request refuses further actions", func(t *testing.T) {
		_, err := d.ApplyAction(ctx, created.RequestID, models.ActionReject)
		var invalid *models.ErrInvalidTransition
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, models.StatusCompleted, invalid.From)

		// The snapshot must be untouched by the refused action.
		got := d.FilterByStatus(string(models.StatusCompleted))
		require.Len(t, got, 1)
		assert.Equal(t, created.RequestID, got[0].RequestID)
	})
}

func TestApplyAction_RequiresSession(t *testing.T) {
	d, _ := setupDashboard(t, false)
	_, err := d.ApplyAction(context.Background(), "REQ-00000001", models.ActionAccept)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestApplyAction_UnknownRequest(t *testing.T) {
	d, s := setupDashboard(t, true)
	ctx := context.Background()

	seedRequest(t, s)
	require.NoError(t, d.Initialize(ctx))

	_, err := d.ApplyAction(ctx, "REQ-00000000", models.ActionAccept)
	require.Error(t, err)
}

// failingStore wraps the real store but refuses status writes, to
// exercise the rollback path.
type failingStore struct {
	domain.RequestStore
}

func (f *failingStore) UpdateStatus(ctx context.Context, requestID string, newStatus models.Status) (*models.ServiceRequest, error) {
	return nil, &store.StoreError{Op: "update status", Message: "disk on fire"}
}

func TestApplyAction_RollsBackOnStoreFailure(t *testing.T) {
	logger := zerolog.Nop()
	s, err := store.New(":memory:", nil, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	created := seedRequest(t, s)

	d := New(&failingStore{RequestStore: s}, &fakeGate{authed: true}, &logger)
	ctx := context.Background()
	require.NoError(t, d.Initialize(ctx))

	_, err = d.ApplyAction(ctx, created.RequestID, models.ActionAccept)
	require.Error(t, err)

	// The tentative local transition must be reverted.
	got := d.Requests()
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusNew, got[0].Status)
}

func TestStats_TenRequestScenario(t *testing.T) {
	d, s := setupDashboard(t, true)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, seedRequest(t, s).RequestID)
	}

	// 3 stay new, 4 end up in progress, 2 completed, 1 rejected.
	for _, id := range ids[:7] {
		_, err := s.UpdateStatus(ctx, id, models.StatusInProgress)
		require.NoError(t, err)
	}
	for _, id := range ids[:2] {
		_, err := s.UpdateStatus(ctx, id, models.StatusCompleted)
		require.NoError(t, err)
	}
	_, err := s.UpdateStatus(ctx, ids[2], models.StatusRejected)
	require.NoError(t, err)

	require.NoError(t, d.Initialize(ctx))
	stats := d.Stats()

	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 3, stats.New)
	assert.Equal(t, 4, stats.InProgress)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Rejected)
}

func TestRun_RefreshesOnChangeEvents(t *testing.T) {
	d, s := setupDashboard(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Initialize(ctx))
	assert.Empty(t, d.Requests())

	go d.Run(ctx)

	seedRequest(t, s)

	assert.Eventually(t, func() bool {
		return len(d.Requests()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelease_IsRepeatable(t *testing.T) {
	d, _ := setupDashboard(t, true)
	require.NoError(t, d.Initialize(context.Background()))
	d.Release()
	d.Release()
}
