package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"gpu_sniper/internal/browser"
	"gpu_sniper/internal/catalog"
	"gpu_sniper/internal/config"
	"gpu_sniper/internal/cookies"
	"gpu_sniper/internal/engine"
	"gpu_sniper/internal/httpapi"
	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/metrics"
	"gpu_sniper/internal/notify"
	"gpu_sniper/internal/provider/nvidia"
	"gpu_sniper/internal/session"
	"gpu_sniper/internal/store/sqlite"
)

type app struct {
	cfg         config.Config
	bus         *logbus.Bus
	logger      *zap.Logger
	stopForward context.CancelFunc
	forwarded   <-chan struct{}
	store       *sqlite.Store
	email       *notify.EmailNotifier
	engine      *engine.Engine
	server      *http.Server
	registry    *prometheus.Registry
}

func wireApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, bus: logbus.New(500)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.logger, err = logbus.NewZapLogger(cfg.Log.Level, cfg.Log.Production)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	fwdCtx, stopForward := context.WithCancel(context.Background())
	a.stopForward = stopForward
	a.forwarded = logbus.Forward(fwdCtx, a.bus, a.logger)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	a.store, err = sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open event journal: %w", err)
	}

	entries, err := cookieSource(cfg.Cookies).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	sess, err := session.New(entries, cfg.Provider.TokenURL, cfg.Provider.CartURL)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	a.bus.Log("info", "session ready", map[string]any{"source": cfg.Cookies.Source, "cookies": len(sess.Cookies())})

	notifiers := notify.Multi{notify.BusNotifier{Bus: a.bus}}
	if cfg.Notify.Email.Enabled {
		a.email = notify.NewEmailNotifier(cfg.Notify.Email, cfg.Notify.SummaryWindow(), a.bus)
		notifiers = append(notifiers, a.email)
	}

	var opener browser.Opener = browser.Noop{Bus: a.bus}
	if cfg.Notify.BrowserEnabled() && !cfg.Buyer.Test {
		opener = browser.RodOpener{Bus: a.bus}
	}

	tracker := engine.NewStatusTracker(a.bus, notifiers, m)
	client := nvidia.New(nvidia.Options{
		Provider: cfg.Provider,
		Proxy:    cfg.Proxy,
		Limits:   cfg.Limits,
		Session:  sess,
		Bus:      a.bus,
		Observer: tracker,
		Metrics:  m,
	})

	src := catalog.NewSource(cfg.Buyer.CatalogPath)
	a.engine = engine.New(engine.Options{
		Vendor:      client,
		Catalog:     src,
		Watcher:     catalog.NewWatcher(src, cfg.Buyer.CatalogCheckInterval(), a.bus),
		Status:      tracker,
		Bus:         a.bus,
		Notifier:    notifiers,
		Opener:      opener,
		Journal:     a.store,
		Metrics:     m,
		Buyer:       cfg.Buyer,
		CartPageURL: cfg.Provider.CartPageURL,
	})

	if cfg.Server.Addr != "" {
		api := httpapi.New(httpapi.Options{
			Cfg:      cfg.Server,
			Bus:      a.bus,
			Engine:   a.engine,
			Events:   a.store,
			Gatherer: a.registry,
		})
		a.server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return a, nil
}

func cookieSource(cfg config.CookiesConfig) cookies.Source {
	switch cfg.Source {
	case config.CookieSourceFile:
		return cookies.FileSource{Path: cfg.File, Domain: cfg.Domain}
	case config.CookieSourceBrowser:
		return cookies.BrowserSource{
			ProfileDir: cfg.ProfileDir,
			Bin:        cfg.BrowserBin,
			Domain:     cfg.Domain,
			WarmupURL:  cfg.WarmupURL,
			Timeout:    time.Minute,
		}
	default:
		return cookies.None{}
	}
}

func (a *app) startServer() {
	if a.server == nil {
		return
	}
	a.bus.Log("info", "status server listening", map[string]any{"addr": a.server.Addr})
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.bus.Log("error", "status server error", map[string]any{"error": err.Error()})
		}
	}()
}

// Close stops everything wireApp started, in reverse order.
func (a *app) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if a.server != nil {
		_ = a.server.Shutdown(shutdownCtx)
	}
	if a.email != nil {
		_ = a.email.Close(shutdownCtx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	// closing the bus ends the forwarder once it has written what is buffered
	a.bus.Close()
	if a.stopForward != nil {
		<-a.forwarded
		a.stopForward()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
