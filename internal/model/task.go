package model

type APIStatus string

const (
	APIStatusOnline  APIStatus = "online"
	APIStatusOffline APIStatus = "offline"
)

type WorkerPhase string

const (
	PhaseChecking    WorkerPhase = "checking"
	PhaseReserving   WorkerPhase = "reserving"
	PhaseFailedRetry WorkerPhase = "failed_retry"
	PhaseDone        WorkerPhase = "done"
)

type WorkerState struct {
	ProductID    string      `json:"productId"`
	Phase        WorkerPhase `json:"phase"`
	Attempt      int         `json:"attempt"`
	Restarts     int         `json:"restarts"`
	CartAttempts int         `json:"cartAttempts"`
	StartedAtMs  int64       `json:"startedAtMs"`
	LastError    string      `json:"lastError,omitempty"`
}

type EngineState struct {
	Running         bool          `json:"running"`
	RunID           string        `json:"runId,omitempty"`
	APIStatus       APIStatus     `json:"apiStatus"`
	PurchaseEnabled bool          `json:"purchaseEnabled"`
	Workers         []WorkerState `json:"workers"`
}
