package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"tameer/internal/events"
	"tameer/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	logger := zerolog.Nop()
	s, err := New(":memory:", nil, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRequest() *models.ServiceRequest {
	return &models.ServiceRequest{
		Name:        "علي محمد",
		Phone:       "+249111111111",
		Location:    "الخرطوم",
		Address:     "حي الرياض، شارع 15",
		ServiceType: "ترميم المنازل",
		Urgency:     "متوسط",
		Description: "تصدعات في الجدار الشمالي",
	}
}

var requestIDPattern = regexp.MustCompile(`^REQ-\d{8}$`)

func TestStore_Create(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)

	assert.Regexp(t, requestIDPattern, created.RequestID)
	assert.Equal(t, models.StatusNew, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.NotZero(t, created.ID)
}

func TestStore_Create_TrimsWhitespace(t *testing.T) {
	s := setupTestStore(t)

	payload := sampleRequest()
	payload.Name = "  علي محمد  "
	payload.Phone = " +249111111111 "

	created, err := s.Create(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "علي محمد", created.Name)
	assert.Equal(t, "+249111111111", created.Phone)
}

func TestStore_Create_MissingFields(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Create(context.Background(), &models.ServiceRequest{
		Name:  "علي",
		Phone: "  ",
	})
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Fields, "phone")
	assert.Contains(t, vErr.Fields, "location")
	assert.Contains(t, vErr.Fields, "address")
	assert.Contains(t, vErr.Fields, "serviceType")
	assert.Contains(t, vErr.Fields, "urgency")
	assert.Contains(t, vErr.Fields, "description")
	assert.NotContains(t, vErr.Fields, "name")
}

func TestStore_Create_UniqueIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Back-to-back submissions land inside the same timestamp window,
	// which forces the random-suffix retry path.
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		created, err := s.Create(ctx, sampleRequest())
		require.NoError(t, err)
		assert.False(t, seen[created.RequestID], "duplicate id %s", created.RequestID)
		seen[created.RequestID] = true
	}
}

func TestStore_GetByRequestID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)

	got, err := s.GetByRequestID(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, created.RequestID, got.RequestID)
	assert.Equal(t, created.Name, got.Name)

	_, err = s.GetByRequestID(ctx, "REQ-00000000")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "REQ-00000000", notFound.RequestID)
}

func TestStore_ListAll_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)
	second, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)

	requests, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, second.RequestID, requests[0].RequestID)
	assert.Equal(t, first.RequestID, requests[1].RequestID)
}

func TestStore_ListByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	kept, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)
	moved, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, moved.RequestID, models.StatusInProgress)
	require.NoError(t, err)

	newOnly, err := s.ListByStatus(ctx, models.StatusNew)
	require.NoError(t, err)
	require.Len(t, newOnly, 1)
	assert.Equal(t, kept.RequestID, newOnly[0].RequestID)

	inProgress, err := s.ListByStatus(ctx, models.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, moved.RequestID, inProgress[0].RequestID)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)

	updated, err := s.UpdateStatus(ctx, created.RequestID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.True(t, !updated.UpdatedAt.Before(created.UpdatedAt))

	t.Run("missing row", func(t *testing.T) {
		_, err := s.UpdateStatus(ctx, "REQ-00000000", models.StatusCompleted)
		var notFound *NotFoundError
		require.True(t, errors.As(err, &notFound))
	})

	t.Run("unknown status value", func(t *testing.T) {
		_, err := s.UpdateStatus(ctx, created.RequestID, models.Status("archived"))
		require.Error(t, err)
	})
}

func TestStore_Remove_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)

	removed, err := s.Remove(ctx, created.RequestID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, created.RequestID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_Stats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		created, err := s.Create(ctx, sampleRequest())
		require.NoError(t, err)
		ids = append(ids, created.RequestID)
	}

	_, err := s.UpdateStatus(ctx, ids[0], models.StatusInProgress)
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, ids[1], models.StatusInProgress)
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, ids[1], models.StatusCompleted)
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, ids[2], models.StatusRejected)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 1, stats.InProgress)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, stats.Total, stats.New+stats.InProgress+stats.Completed+stats.Rejected)
}

func TestStore_ChangeEvents(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var types []string
	sub := s.Subscribe(func(event *events.Event) error {
		types = append(types, event.Type)
		return nil
	})
	defer s.Unsubscribe(sub)

	created, err := s.Create(ctx, sampleRequest())
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, created.RequestID, models.StatusInProgress)
	require.NoError(t, err)
	_, err = s.Remove(ctx, created.RequestID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.EventRequestCreated,
		events.EventRequestStatusChanged,
		events.EventRequestDeleted,
	}, types)
}

func TestStore_PreferredDateRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	payload := sampleRequest()
	payload.PreferredDate = &date
	payload.Email = "ali@example.com"

	created, err := s.Create(ctx, payload)
	require.NoError(t, err)

	got, err := s.GetByRequestID(ctx, created.RequestID)
	require.NoError(t, err)
	require.NotNil(t, got.PreferredDate)
	assert.True(t, got.PreferredDate.Equal(date))
	assert.Equal(t, "ali@example.com", got.Email)
}

func TestStore_TestConnectivity(t *testing.T) {
	s := setupTestStore(t)
	assert.True(t, s.TestConnectivity(context.Background()))

	s.Close()
	assert.False(t, s.TestConnectivity(context.Background()))
}
