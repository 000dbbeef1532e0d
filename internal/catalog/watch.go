package catalog

import (
	"context"
	"time"

	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/model"
)

type Watcher struct {
	src      Source
	interval time.Duration
	bus      *logbus.Bus
}

func NewWatcher(src Source, interval time.Duration, bus *logbus.Bus) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{src: src, interval: interval, bus: bus}
}

// Wait blocks until the entry for (userLocale, family) no longer equals initial,
// returning ErrCatalogChanged, or until ctx is done. A catalog that fails to load
// is treated as mid-write and skipped; a missing entry counts as a change.
func (w *Watcher) Wait(ctx context.Context, userLocale string, family model.GPUFamily, initial ProductIDs) error {
	if _, ok := w.src.(EmbeddedSource); ok {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c, err := w.src.Load()
			if err != nil {
				if w.bus != nil {
					w.bus.Log("debug", "catalog reload skipped", map[string]any{"error": err.Error()})
				}
				continue
			}
			current, err := c.lookupUser(userLocale, family)
			if err != nil || !current.Equal(initial) {
				return ErrCatalogChanged
			}
		}
	}
}
