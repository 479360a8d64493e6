package domain

import (
	"context"

	"tameer/internal/events"
	"tameer/internal/models"
)

// RequestStore is the narrow contract over the persistent
// service_requests table. internal/store is the only implementation;
// flows depend on this interface so tests can substitute failures.
type RequestStore interface {
	ListAll(ctx context.Context) ([]models.ServiceRequest, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.ServiceRequest, error)
	GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error)
	Create(ctx context.Context, payload *models.ServiceRequest) (*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, requestID string, newStatus models.Status) (*models.ServiceRequest, error)
	Remove(ctx context.Context, requestID string) (bool, error)
	Stats(ctx context.Context) (models.Stats, error)
	Subscribe(onChange events.Handler) *events.Subscription
	Unsubscribe(sub *events.Subscription)
	TestConnectivity(ctx context.Context) bool
}

// EventPublisher is the write side of the change bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SheetsWriter mirrors the requests table into a staff spreadsheet.
type SheetsWriter interface {
	ReplaceRequestsSheet(ctx context.Context, requests []models.ServiceRequest) error
	AppendRequest(ctx context.Context, req *models.ServiceRequest) error
}

// Notifier tells staff about newly submitted requests.
type Notifier interface {
	NotifyNewRequest(req *events.RequestEventPayload) error
}
