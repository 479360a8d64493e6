package models

import "time"

// ServiceRequest is one citizen-submitted intake record for the
// reconstruction service. The store keeps display values (Arabic
// labels) exactly as the dashboard shows them.
type ServiceRequest struct {
	ID            int64      `json:"id"`
	RequestID     string     `json:"request_id"` // REQ-########, immutable after creation
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email,omitempty"`
	Location      string     `json:"location"`
	Address       string     `json:"address"`
	ServiceType   string     `json:"service_type"` // comma-joined labels for multi-select
	Urgency       string     `json:"urgency"`
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
	Description   string     `json:"description"`
	PhotoNames    string     `json:"photo_names,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Stats is the aggregate snapshot shown on the dashboard header.
// Total always equals the sum of the four status buckets.
type Stats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Rejected   int `json:"rejected"`
}
