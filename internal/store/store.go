package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tameer/internal/events"
	"tameer/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is the only component that talks to the persistent
// service_requests table. Everything else depends on this surface, so
// the storage technology can change without touching the flows.
type Store struct {
	db     *sql.DB
	bus    *events.ChangeBus
	logger *zerolog.Logger
}

const createIDAttempts = 3

// New opens (or creates) the sqlite table. The change bus is shared so
// other components can attach to the same event stream; nil gets a
// private bus.
func New(path string, bus *events.ChangeBus, logger *zerolog.Logger) (*Store, error) {
	if bus == nil {
		bus = events.NewChangeBus()
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("request store initialized")
	return &Store{db: db, bus: bus, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS service_requests (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            request_id TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            phone TEXT NOT NULL,
            email TEXT,
            location TEXT NOT NULL,
            address TEXT NOT NULL,
            service_type TEXT NOT NULL,
            urgency TEXT NOT NULL,
            preferred_date DATETIME,
            description TEXT NOT NULL,
            photo_names TEXT,
            status TEXT NOT NULL DEFAULT 'جديد',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_requests_status ON service_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_created_at ON service_requests(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_request_id ON service_requests(request_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

const requestColumns = `id, request_id, name, phone, email, location, address,
               service_type, urgency, preferred_date, description, photo_names,
               status, created_at, updated_at`

// ListAll returns every request, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + `
        FROM service_requests
        ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list requests", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByStatus returns requests filtered in the store, newest first.
func (s *Store) ListByStatus(ctx context.Context, status models.Status) ([]models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + `
        FROM service_requests
        WHERE status = ?
        ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, storeErr("list requests by status", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// GetByRequestID fetches a single request by its public id.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + `
        FROM service_requests WHERE request_id = ?`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{RequestID: requestID}
	}
	if err != nil {
		return nil, storeErr("get request", err)
	}
	return req, nil
}

// Create validates the payload once more (the submission flow is the
// real gatekeeper), assigns the public id and both timestamps, and
// persists one row. The returned record is the stored one.
func (s *Store) Create(ctx context.Context, payload *models.ServiceRequest) (*models.ServiceRequest, error) {
	if missing := missingRequiredFields(payload); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	req := *payload
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	req.Location = strings.TrimSpace(req.Location)
	req.Address = strings.TrimSpace(req.Address)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	req.Urgency = strings.TrimSpace(req.Urgency)
	req.Description = strings.TrimSpace(req.Description)
	req.Status = models.StatusNew

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	// The timestamp suffix keeps the human-readable shape the staff
	// already know. Two submissions inside the same ~100ms can collide,
	// so a unique violation retries with a random suffix.
	for attempt := 0; attempt < createIDAttempts; attempt++ {
		if attempt == 0 {
			req.RequestID = timestampRequestID(now)
		} else {
			req.RequestID = randomRequestID()
		}

		id, err := s.insertRequest(ctx, &req)
		if err == nil {
			req.ID = id
			s.publish(events.EventRequestCreated, &req)
			return &req, nil
		}
		if isUniqueViolation(err) {
			s.logger.Warn().Str("request_id", req.RequestID).Msg("request id collision, retrying with random suffix")
			continue
		}
		return nil, &StoreError{Op: "create request", Message: "خطأ في قاعدة البيانات: " + err.Error(), Err: err}
	}

	err := fmt.Errorf("could not allocate unique request id after %d attempts", createIDAttempts)
	return nil, &StoreError{Op: "create request", Message: err.Error(), Err: err}
}

func (s *Store) insertRequest(ctx context.Context, req *models.ServiceRequest) (int64, error) {
	query := `
        INSERT INTO service_requests
            (request_id, name, phone, email, location, address, service_type,
             urgency, preferred_date, description, photo_names, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	result, err := s.db.ExecContext(ctx, query,
		req.RequestID,
		req.Name,
		req.Phone,
		nullString(req.Email),
		req.Location,
		req.Address,
		req.ServiceType,
		req.Urgency,
		nullTime(req.PreferredDate),
		req.Description,
		nullString(req.PhotoNames),
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateStatus moves a request to newStatus and refreshes updated_at.
// The caller owns the lifecycle rules; the store only requires a known
// status value.
func (s *Store) UpdateStatus(ctx context.Context, requestID string, newStatus models.Status) (*models.ServiceRequest, error) {
	if !models.ValidStatus(newStatus) {
		return nil, &StoreError{Op: "update status", Message: fmt.Sprintf("unknown status %q", newStatus)}
	}

	query := `UPDATE service_requests SET status = ?, updated_at = ? WHERE request_id = ?`
	result, err := s.db.ExecContext(ctx, query, newStatus, time.Now().UTC(), requestID)
	if err != nil {
		return nil, storeErr("update status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, storeErr("update status", err)
	}
	if affected == 0 {
		return nil, &NotFoundError{RequestID: requestID}
	}

	req, err := s.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventRequestStatusChanged, req)
	return req, nil
}

// Remove deletes a request. Idempotent: a missing row is reported as
// false, never as an error.
func (s *Store) Remove(ctx context.Context, requestID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM service_requests WHERE request_id = ?`, requestID)
	if err != nil {
		return false, storeErr("delete request", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("delete request", err)
	}
	if affected == 0 {
		return false, nil
	}

	s.publish(events.EventRequestDeleted, &models.ServiceRequest{RequestID: requestID})
	return true, nil
}

// Stats recomputes the aggregate counts on every call. No caching:
// the dashboard treats each snapshot as current truth.
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM service_requests GROUP BY status`)
	if err != nil {
		return models.Stats{}, storeErr("load stats", err)
	}
	defer rows.Close()

	var stats models.Stats
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return models.Stats{}, storeErr("load stats", err)
		}

		stats.Total += count
		switch status {
		case models.StatusNew:
			stats.New = count
		case models.StatusInProgress:
			stats.InProgress = count
		case models.StatusCompleted:
			stats.Completed = count
		case models.StatusRejected:
			stats.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		return models.Stats{}, storeErr("load stats", err)
	}

	return stats, nil
}

// Subscribe registers a callback for every insert/update/delete on the
// table. Delivery is at-least-once; receivers should re-fetch instead
// of applying diffs.
func (s *Store) Subscribe(onChange events.Handler) *events.Subscription {
	return s.bus.SubscribeAll(onChange)
}

// Unsubscribe releases a subscription handle. Safe on nil.
func (s *Store) Unsubscribe(sub *events.Subscription) {
	s.bus.Unsubscribe(sub)
}

// TestConnectivity performs a lightweight existence check against the
// table. Never returns an error: any failure reads as "not connected".
func (s *Store) TestConnectivity(ctx context.Context) bool {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_requests`).Scan(&count)
	if err != nil {
		s.logger.Warn().Err(err).Msg("connectivity check failed")
		return false
	}
	return true
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) publish(eventType string, req *models.ServiceRequest) {
	err := s.bus.PublishJSON(eventType, events.RequestEventPayload{
		RequestID:   req.RequestID,
		Status:      string(req.Status),
		Name:        req.Name,
		ServiceType: req.ServiceType,
		Location:    req.Location,
		Urgency:     req.Urgency,
		ChangedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish change event")
	}
}

// requiredFieldNames follow the intake form field keys so the
// aggregated validation message matches what the form shows.
func missingRequiredFields(req *models.ServiceRequest) []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", req.Name)
	check("phone", req.Phone)
	check("location", req.Location)
	check("address", req.Address)
	check("serviceType", req.ServiceType)
	check("urgency", req.Urgency)
	check("description", req.Description)
	return missing
}

func timestampRequestID(now time.Time) string {
	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	return "REQ-" + millis
}

func randomRequestID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		// crypto/rand failure is effectively unreachable; fall back to
		// the clock rather than aborting the submission.
		return timestampRequestID(time.Now())
	}
	return fmt.Sprintf("REQ-%08d", n.Int64())
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	var email sql.NullString
	var photoNames sql.NullString
	var preferredDate sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.RequestID,
		&req.Name,
		&req.Phone,
		&email,
		&req.Location,
		&req.Address,
		&req.ServiceType,
		&req.Urgency,
		&preferredDate,
		&req.Description,
		&photoNames,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Email = email.String
	req.PhotoNames = photoNames.String
	if preferredDate.Valid {
		t := preferredDate.Time
		req.PreferredDate = &t
	}
	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storeErr("scan request", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read requests", err)
	}
	return requests, nil
}
