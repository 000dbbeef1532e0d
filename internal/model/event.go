package model

import "time"

type EventKind string

const (
	EventRunStarted     EventKind = "run_started"
	EventInStock        EventKind = "in_stock"
	EventCartSuccess    EventKind = "cart_success"
	EventCartFailed     EventKind = "cart_failed"
	EventWorkerRestart  EventKind = "worker_restart"
	EventCatalogChanged EventKind = "catalog_changed"
)

// Event is one row of the run journal.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	ProductID string    `json:"productId,omitempty"`
	Kind      EventKind `json:"kind"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

const (
	RunOutcomeRunning   = "running"
	RunOutcomeCompleted = "completed"
	RunOutcomeReserved  = "reserved"
	RunOutcomeCancelled = "cancelled"
	RunOutcomeFailed    = "failed"
)

// Run describes one multi-worker run. A catalog change starts a new Run.
type Run struct {
	ID         string     `json:"id"`
	GPU        GPUFamily  `json:"gpu"`
	Locale     string     `json:"locale"`
	ProductIDs []string   `json:"productIds"`
	Test       bool       `json:"test"`
	Outcome    string     `json:"outcome"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}
