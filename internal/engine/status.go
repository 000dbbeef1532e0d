package engine

import (
	"context"
	"sync"
	"time"

	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/metrics"
	"gpu_sniper/internal/model"
	"gpu_sniper/internal/notify"
)

const backOnlineText = "Nvidia API appears to be back online"

// StatusTracker holds the store API status for one engine. The vendor client
// reports failures to it and workers confirm it is online after clean polls.
type StatusTracker struct {
	bus      *logbus.Bus
	notifier notify.Notifier
	metrics  *metrics.Metrics

	mu     sync.Mutex
	status model.APIStatus
	offGen uint64
	since  time.Time
}

func NewStatusTracker(bus *logbus.Bus, notifier notify.Notifier, m *metrics.Metrics) *StatusTracker {
	return &StatusTracker{
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		status:   model.APIStatusOnline,
		since:    time.Now(),
	}
}

func (t *StatusTracker) Current() model.APIStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Generation counts offline reports. Read it before a poll and pass it to
// ConfirmOnline afterwards.
func (t *StatusTracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offGen
}

// ConfirmOnline marks the API online unless some caller reported it offline
// after gen was read.
func (t *StatusTracker) ConfirmOnline(ctx context.Context, gen uint64) {
	t.mu.Lock()
	if t.offGen != gen {
		t.mu.Unlock()
		return
	}
	prev, down := t.setLocked(model.APIStatusOnline)
	t.mu.Unlock()
	t.changed(ctx, prev, model.APIStatusOnline, down)
}

func (t *StatusTracker) ObserveAPIStatus(ctx context.Context, status model.APIStatus) {
	t.mu.Lock()
	prev, down := t.setLocked(status)
	t.mu.Unlock()
	t.changed(ctx, prev, status, down)
}

func (t *StatusTracker) setLocked(status model.APIStatus) (prev model.APIStatus, down time.Duration) {
	prev = t.status
	if status == model.APIStatusOffline {
		t.offGen++
	}
	t.status = status
	if prev != status {
		down = time.Since(t.since)
		t.since = time.Now()
	}
	return prev, down
}

func (t *StatusTracker) changed(ctx context.Context, prev, status model.APIStatus, down time.Duration) {
	if prev == status {
		return
	}
	t.metrics.APIStatus(status)
	if status == model.APIStatusOffline {
		t.log("warn", "store API marked offline", nil)
		return
	}
	t.log("info", backOnlineText, map[string]any{"downFor": down.Round(time.Second).String()})
	if t.notifier != nil {
		t.notifier.Notify(ctx, notify.Notification{At: time.Now().UnixMilli(), Text: backOnlineText})
	}
}

func (t *StatusTracker) log(level, msg string, fields map[string]any) {
	if t.bus != nil {
		t.bus.Log(level, msg, fields)
	}
}
