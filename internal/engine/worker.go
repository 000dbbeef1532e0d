package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/model"
	"gpu_sniper/internal/notify"
	"gpu_sniper/internal/provider"
)

// errCartRetriesExhausted sends a worker back to stock checking.
var errCartRetriesExhausted = errors.New("cart retries exhausted")

// runWorker drives one product until it is done. It returns nil when the
// product needs no more work or ctx is cancelled, and any other error as fatal
// for the run.
func (e *Engine) runWorker(ctx context.Context, runID string, target model.ProductTarget) error {
	for {
		err := e.buyCycle(ctx, runID, target)
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, provider.ErrTransport), errors.Is(err, errCartRetriesExhausted):
			e.restart(ctx, runID, target, err)
			if !sleepUntil(ctx, time.Now().Add(e.buyer.Interval())) {
				return nil
			}
		default:
			e.updateState(target.ProductID, func(st *model.WorkerState) { st.LastError = err.Error() })
			e.log("error", "worker stopped", map[string]any{"productId": target.ProductID, "error": err.Error()})
			return err
		}
	}
}

// restart resets the worker to a fresh buy cycle. Counters start over.
func (e *Engine) restart(ctx context.Context, runID string, target model.ProductTarget, cause error) {
	if errors.Is(cause, provider.ErrTransport) {
		e.status.ObserveAPIStatus(ctx, model.APIStatusOffline)
	}
	e.metrics.WorkerRestart()
	e.log("warn", "restarting buy cycle", map[string]any{"productId": target.ProductID, "error": cause.Error()})
	e.record(ctx, runID, target.ProductID, model.EventWorkerRestart, cause.Error())
	e.updateState(target.ProductID, func(st *model.WorkerState) {
		st.Restarts++
		st.LastError = cause.Error()
	})
}

// buyCycle is one pass of checking followed by reserving.
func (e *Engine) buyCycle(ctx context.Context, runID string, target model.ProductTarget) error {
	startedAt := time.Now()
	e.updateState(target.ProductID, func(st *model.WorkerState) {
		st.Phase = model.PhaseChecking
		st.Attempt = 0
		st.CartAttempts = 0
		st.StartedAtMs = startedAt.UnixMilli()
	})

	if err := e.checkUntilInStock(ctx, target, startedAt); err != nil {
		return err
	}
	e.log("info", "product in stock", map[string]any{"productId": target.ProductID, "gpu": target.GPU.DisplayName()})
	e.record(ctx, runID, target.ProductID, model.EventInStock, target.GPU.DisplayName())
	return e.reserve(ctx, runID, target)
}

func (e *Engine) checkUntilInStock(ctx context.Context, target model.ProductTarget, startedAt time.Time) error {
	interval := e.buyer.Interval()
	attempt := 0
	for {
		gen := e.status.Generation()
		inStock, err := e.vendor.CheckStock(ctx, target)
		if err != nil {
			return err
		}
		e.status.ConfirmOnline(ctx, gen)
		if inStock {
			return nil
		}
		if !sleepUntil(ctx, time.Now().Add(interval)) {
			return ctx.Err()
		}
		attempt++
		e.updateState(target.ProductID, func(st *model.WorkerState) { st.Attempt = attempt })
		if e.bus != nil {
			e.bus.Publish(logbus.TypeStockCheck, logbus.StockCheckData{
				ProductID: target.ProductID,
				Attempt:   attempt,
				Elapsed:   formatElapsed(time.Since(startedAt)),
			})
		}
	}
}

func (e *Engine) reserve(ctx context.Context, runID string, target model.ProductTarget) error {
	name := target.GPU.DisplayName()
	e.updateState(target.ProductID, func(st *model.WorkerState) { st.Phase = model.PhaseReserving })

	if !e.gate.Enabled() {
		e.log("info", "purchase already made, skipping", map[string]any{"productId": target.ProductID})
		e.finish(target.ProductID)
		return nil
	}
	if e.buyer.Test {
		e.notify(ctx, notify.Notification{
			Kind:      model.EventInStock,
			ProductID: target.ProductID,
			GPU:       name,
			Text:      fmt.Sprintf("%s with product ID %s in stock (test mode): %s", name, target.ProductID, e.cartPage),
			URL:       e.cartPage,
		})
		e.finish(target.ProductID)
		return nil
	}

	policy := e.buyer.CartRetry
	failures := 0
	for {
		e.updateState(target.ProductID, func(st *model.WorkerState) { st.CartAttempts++ })
		added, err := e.vendor.AddToCart(ctx, target)
		if err != nil {
			return err
		}
		if added {
			e.reserved(ctx, runID, target)
			return nil
		}

		failures++
		e.updateState(target.ProductID, func(st *model.WorkerState) { st.Phase = model.PhaseFailedRetry })
		e.record(ctx, runID, target.ProductID, model.EventCartFailed, fmt.Sprintf("attempt %d", failures))
		e.notify(ctx, notify.Notification{
			Kind:      model.EventCartFailed,
			ProductID: target.ProductID,
			GPU:       name,
			Text:      fmt.Sprintf("ERROR: Attempted to add %s to cart but couldn't, check manually!", name),
			URL:       e.cartPage,
		})
		if policy.MaxAttempts > 0 && failures >= policy.MaxAttempts {
			return fmt.Errorf("%w: %d attempts for %s", errCartRetriesExhausted, failures, target.ProductID)
		}
		if !e.gate.Enabled() {
			e.finish(target.ProductID)
			return nil
		}
		if !sleepUntil(ctx, time.Now().Add(policy.Delay(failures))) {
			return ctx.Err()
		}
		e.updateState(target.ProductID, func(st *model.WorkerState) { st.Phase = model.PhaseReserving })
	}
}

// reserved closes the purchase gate for the first product in the cart. Later
// workers only log.
func (e *Engine) reserved(ctx context.Context, runID string, target model.ProductTarget) {
	name := target.GPU.DisplayName()
	e.finish(target.ProductID)
	if !e.gate.Close() {
		e.log("warn", "product added to cart after the purchase gate closed", map[string]any{"productId": target.ProductID})
		return
	}
	e.mu.Lock()
	e.reservedRun = runID
	e.mu.Unlock()
	e.record(ctx, runID, target.ProductID, model.EventCartSuccess, name)
	e.log("info", "product added to cart", map[string]any{"productId": target.ProductID, "gpu": name})
	e.opener.Open(ctx, e.cartPage)
	e.notify(ctx, notify.Notification{
		Kind:      model.EventCartSuccess,
		ProductID: target.ProductID,
		GPU:       name,
		Text:      fmt.Sprintf("%s with product ID %s in stock and added to cart: %s", name, target.ProductID, e.cartPage),
		URL:       e.cartPage,
	})
}

func (e *Engine) finish(productID string) {
	e.updateState(productID, func(st *model.WorkerState) { st.Phase = model.PhaseDone })
}

func (e *Engine) notify(ctx context.Context, n notify.Notification) {
	if n.At == 0 {
		n.At = time.Now().UnixMilli()
	}
	e.notifier.Notify(ctx, n)
}
