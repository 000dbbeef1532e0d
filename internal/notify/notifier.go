package notify

import (
	"context"

	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/model"
)

// TypeNotification is the bus message type carrying a Notification.
const TypeNotification = "notification"

type Notification struct {
	At        int64           `json:"atMs"`
	Kind      model.EventKind `json:"kind,omitempty"`
	ProductID string          `json:"productId,omitempty"`
	GPU       string          `json:"gpu,omitempty"`
	Text      string          `json:"text"`
	URL       string          `json:"url,omitempty"`
}

// Notifier delivers user facing alerts. Implementations must not block the caller
// on slow delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// BusNotifier publishes notifications on the log bus, which reaches the console
// and websocket clients.
type BusNotifier struct {
	Bus *logbus.Bus
}

func (b BusNotifier) Notify(_ context.Context, n Notification) {
	if b.Bus == nil {
		return
	}
	b.Bus.Publish(TypeNotification, n)
	fields := map[string]any{}
	if n.ProductID != "" {
		fields["productId"] = n.ProductID
	}
	if n.URL != "" {
		fields["url"] = n.URL
	}
	b.Bus.Log("info", n.Text, fields)
}

// Multi fans a notification out to every non-nil notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
