package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gpu_sniper/internal/browser"
	"gpu_sniper/internal/catalog"
	"gpu_sniper/internal/config"
	"gpu_sniper/internal/locale"
	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/metrics"
	"gpu_sniper/internal/model"
	"gpu_sniper/internal/notify"
	"gpu_sniper/internal/provider"
)

// Journal records run lifecycle events. *sqlite.Store implements it.
type Journal interface {
	StartRun(ctx context.Context, r model.Run) (model.Run, error)
	FinishRun(ctx context.Context, id string, outcome string) error
	RecordEvent(ctx context.Context, e model.Event) (model.Event, error)
}

// CatalogWatcher blocks until the product ids for (userLocale, family) stop
// matching initial. *catalog.Watcher implements it.
type CatalogWatcher interface {
	Wait(ctx context.Context, userLocale string, family model.GPUFamily, initial catalog.ProductIDs) error
}

type Options struct {
	Vendor      provider.Vendor
	Catalog     catalog.Source
	Watcher     CatalogWatcher
	Status      *StatusTracker
	Bus         *logbus.Bus
	Notifier    notify.Notifier
	Opener      browser.Opener
	Journal     Journal
	Metrics     *metrics.Metrics
	Buyer       config.BuyerConfig
	CartPageURL string
}

type Engine struct {
	vendor   provider.Vendor
	catalog  catalog.Source
	watcher  CatalogWatcher
	status   *StatusTracker
	bus      *logbus.Bus
	notifier notify.Notifier
	opener   browser.Opener
	journal  Journal
	metrics  *metrics.Metrics

	buyer    config.BuyerConfig
	cartPage string
	gate     *PurchaseGate

	mu      sync.Mutex
	running bool
	runID   string
	order   []string
	states  map[string]*model.WorkerState

	// reservedRun is the run whose worker won the purchase gate.
	reservedRun string
}

func New(opts Options) *Engine {
	e := &Engine{
		vendor:   opts.Vendor,
		catalog:  opts.Catalog,
		watcher:  opts.Watcher,
		status:   opts.Status,
		bus:      opts.Bus,
		notifier: opts.Notifier,
		opener:   opts.Opener,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		buyer:    opts.Buyer,
		cartPage: opts.CartPageURL,
		gate:     NewPurchaseGate(),
		states:   make(map[string]*model.WorkerState),
	}
	if e.catalog == nil {
		e.catalog = catalog.EmbeddedSource{}
	}
	if e.status == nil {
		e.status = NewStatusTracker(opts.Bus, opts.Notifier, opts.Metrics)
	}
	if e.notifier == nil {
		e.notifier = notify.BusNotifier{Bus: opts.Bus}
	}
	if e.opener == nil {
		e.opener = browser.Noop{Bus: opts.Bus}
	}
	return e
}

// Targets resolves the configured gpu and locale into the products a run polls.
// Duplicate ids are dropped, first occurrence wins.
func (e *Engine) Targets() (model.GPUFamily, catalog.ProductIDs, []model.ProductTarget, error) {
	family, err := model.ParseGPUFamily(e.buyer.GPU)
	if err != nil {
		return "", catalog.ProductIDs{}, nil, err
	}
	ids, err := catalog.Resolve(e.catalog, e.buyer.Locale, family)
	if err != nil {
		return "", catalog.ProductIDs{}, nil, err
	}
	canonical := locale.Resolve(e.buyer.Locale)
	currency := locale.Currency(canonical)

	seen := make(map[string]struct{})
	var targets []model.ProductTarget
	for _, id := range ids.IDs() {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, model.ProductTarget{ProductID: id, GPU: family, Locale: canonical, Currency: currency})
	}
	if len(targets) == 0 {
		return "", catalog.ProductIDs{}, nil, fmt.Errorf("%w: no product ids for gpu %s in locale %q", model.ErrConfigurationMismatch, family, e.buyer.Locale)
	}
	return family, ids, targets, nil
}

// Run polls every product until every worker is done, ctx is cancelled or a
// worker fails. A reservation only closes the purchase gate; the other workers
// keep polling and finish without buying once their product is in stock. A catalog change restarts the run with freshly
// resolved products.
func (e *Engine) Run(ctx context.Context) error {
	if e.buyer.CartRetry.Mode == config.CartRetryImmediate && e.buyer.CartRetry.MaxAttempts == 0 {
		e.log("warn", "cart retries are immediate and unbounded; set buyer.cartRetry to back off", nil)
	}
	for {
		family, ids, targets, err := e.Targets()
		if err != nil {
			return err
		}
		err = e.runOnce(ctx, family, ids, targets)
		if errors.Is(err, catalog.ErrCatalogChanged) {
			e.metrics.CatalogRestart()
			e.log("warn", "product ids changed, restarting", map[string]any{"gpu": string(family), "locale": e.buyer.Locale})
			continue
		}
		return err
	}
}

func (e *Engine) runOnce(parent context.Context, family model.GPUFamily, ids catalog.ProductIDs, targets []model.ProductTarget) error {
	runID := uuid.NewString()
	productIDs := make([]string, 0, len(targets))
	for _, t := range targets {
		productIDs = append(productIDs, t.ProductID)
	}
	if e.journal != nil {
		if _, err := e.journal.StartRun(parent, model.Run{
			ID:         runID,
			GPU:        family,
			Locale:     targets[0].Locale,
			ProductIDs: productIDs,
			Test:       e.buyer.Test,
		}); err != nil {
			e.log("warn", "journal start run failed", map[string]any{"error": err.Error()})
		}
	}

	e.mu.Lock()
	e.running = true
	e.runID = runID
	e.order = productIDs
	e.states = make(map[string]*model.WorkerState, len(targets))
	now := time.Now().UnixMilli()
	for _, t := range targets {
		st := &model.WorkerState{ProductID: t.ProductID, Phase: model.PhaseChecking, StartedAtMs: now}
		e.states[t.ProductID] = st
		e.publishStateLocked(*st)
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.record(parent, runID, "", model.EventRunStarted, fmt.Sprintf("%s in %s, %d product(s)", family.DisplayName(), targets[0].Locale, len(targets)))
	e.log("info", "run started", map[string]any{
		"runId":    runID,
		"gpu":      family.DisplayName(),
		"locale":   targets[0].Locale,
		"currency": targets[0].Currency,
		"products": productIDs,
		"test":     e.buyer.Test,
		"vendor":   e.vendor.Name(),
	})

	runCtx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for _, t := range targets {
		wg.Add(1)
		go func(t model.ProductTarget) {
			defer wg.Done()
			if err := e.runWorker(runCtx, runID, t); err != nil {
				errOnce.Do(func() { firstErr = err })
				cancel(err)
			}
		}(t)
	}

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if e.watcher == nil {
			return
		}
		if err := e.watcher.Wait(runCtx, e.buyer.Locale, family, ids); errors.Is(err, catalog.ErrCatalogChanged) {
			cancel(catalog.ErrCatalogChanged)
		}
	}()

	wg.Wait()
	cause := context.Cause(runCtx)
	cancel(nil)
	<-watchDone

	bg := context.WithoutCancel(parent)
	switch {
	case firstErr != nil:
		e.finishRun(bg, runID, model.RunOutcomeFailed)
		return firstErr
	case errors.Is(cause, catalog.ErrCatalogChanged):
		e.record(bg, runID, "", model.EventCatalogChanged, "product ids changed")
		e.finishRun(bg, runID, e.outcome(runID, model.RunOutcomeCancelled))
		return catalog.ErrCatalogChanged
	case parent.Err() != nil:
		e.finishRun(bg, runID, e.outcome(runID, model.RunOutcomeCancelled))
		return parent.Err()
	default:
		e.finishRun(bg, runID, e.outcome(runID, model.RunOutcomeCompleted))
		e.log("info", "all workers finished", map[string]any{"runId": runID})
		return nil
	}
}

// State returns a snapshot for the status API.
func (e *Engine) State() model.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := model.EngineState{
		Running:         e.running,
		RunID:           e.runID,
		APIStatus:       e.status.Current(),
		PurchaseEnabled: e.gate.Enabled(),
		Workers:         make([]model.WorkerState, 0, len(e.order)),
	}
	for _, id := range e.order {
		if st := e.states[id]; st != nil {
			out.Workers = append(out.Workers, *st)
		}
	}
	return out
}

// outcome reports reserved when a worker of runID put its product in the cart.
func (e *Engine) outcome(runID, fallback string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reservedRun == runID {
		return model.RunOutcomeReserved
	}
	return fallback
}

func (e *Engine) finishRun(ctx context.Context, runID, outcome string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.FinishRun(ctx, runID, outcome); err != nil {
		e.log("warn", "journal finish run failed", map[string]any{"error": err.Error()})
	}
}

func (e *Engine) record(ctx context.Context, runID, productID string, kind model.EventKind, msg string) {
	if e.journal == nil {
		return
	}
	_, err := e.journal.RecordEvent(context.WithoutCancel(ctx), model.Event{
		RunID:     runID,
		ProductID: productID,
		Kind:      kind,
		Message:   msg,
	})
	if err != nil {
		e.log("warn", "journal record failed", map[string]any{"kind": string(kind), "error": err.Error()})
	}
}

func (e *Engine) updateState(productID string, fn func(st *model.WorkerState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.states[productID]
	if st == nil {
		return
	}
	fn(st)
	e.publishStateLocked(*st)
}

func (e *Engine) publishStateLocked(st model.WorkerState) {
	if e.bus != nil {
		e.bus.Publish(logbus.TypeState, st)
	}
}

func (e *Engine) log(level, msg string, fields map[string]any) {
	if e.bus != nil {
		e.bus.Log(level, msg, fields)
	}
}

func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// formatElapsed renders d as H:MM:SS.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
