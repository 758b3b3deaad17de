package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-intercept/internal/intercept/common/clock"
	"github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/config"
	"github.com/haukened/rr-intercept/internal/intercept/gateways/transport"
	"github.com/haukened/rr-intercept/internal/intercept/gateways/wire"
	"github.com/haukened/rr-intercept/internal/intercept/repos/bloom"
	"github.com/haukened/rr-intercept/internal/intercept/repos/parsers"
	"github.com/haukened/rr-intercept/internal/intercept/repos/surrogates"
	"github.com/haukened/rr-intercept/internal/intercept/repos/trackers"
	trackerbolt "github.com/haukened/rr-intercept/internal/intercept/repos/trackers/bolt"
	trackerlru "github.com/haukened/rr-intercept/internal/intercept/repos/trackers/lru"
	"github.com/haukened/rr-intercept/internal/intercept/repos/trusted"
	"github.com/haukened/rr-intercept/internal/intercept/repos/upgrade"
	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-interceptd"
)

// Application holds all the components of the interception daemon
type Application struct {
	config    *config.AppConfig
	transport transport.ServerTransport
	evaluator interceptor.RequestEvaluator
	listener  *interceptor.AsyncListener
	store     trackers.Store
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"app":           appName,
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"workers":       cfg.Workers,
		"tracker_lists": cfg.TrackerLists,
		"tracker_db":    cfg.TrackerDB,
	}, "Starting RR-Intercept daemon")

	// Build application with all dependencies
	app, err := buildApplication(cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Daemon failed")
	}

	log.Info(nil, "RR-Intercept daemon stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, in io.Reader, out io.Writer) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	repos, err := buildRepositories(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	// Notifications are delivered off the request path.
	listener := interceptor.NewAsyncListener(interceptor.NewLogListener(logger), cfg.ListenerBuffer, logger)

	ix := interceptor.NewInterceptor(interceptor.Options{
		Upgrader:   repos.upgrader,
		Trust:      repos.trust,
		Trackers:   repos.trackers,
		Surrogates: repos.surrogates,
		Listener:   listener,
		Logger:     logger,
	})

	return &Application{
		config:    cfg,
		transport: transport.NewStreamTransport(in, out, wire.NewJSONCodec(), cfg.Workers, logger),
		evaluator: ix,
		listener:  listener,
		store:     repos.store,
	}, nil
}

// repositories holds all collaborator implementations
type repositories struct {
	upgrader   interceptor.UpgradeOracle
	trust      interceptor.TrustRegistry
	trackers   interceptor.TrackerClassifier
	surrogates interceptor.SurrogateStore
	store      trackers.Store
}

// buildRepositories creates and loads every collaborator
func buildRepositories(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*repositories, error) {
	now := clk.Now()
	factory := bloom.NewFactory()

	// HTTPS upgrade list
	oracle := upgrade.NewOracle(factory, cfg.UpgradeFPRate, logger)
	if cfg.UpgradeList != "" {
		rules, err := parsers.LoadFile(cfg.UpgradeList, logger, now)
		if err != nil {
			return nil, fmt.Errorf("failed to load upgrade list: %w", err)
		}
		oracle.Load(rules)
	}

	// Trusted sites
	registry := trusted.NewRegistry()
	if cfg.TrustedList != "" {
		rules, err := parsers.LoadFile(cfg.TrustedList, logger, now)
		if err != nil {
			return nil, fmt.Errorf("failed to load trusted list: %w", err)
		}
		registry.Replace(rules)
	}
	for _, site := range cfg.TrustedSites {
		if err := registry.Add(site); err != nil {
			return nil, err
		}
	}
	for _, site := range cfg.UntrustedSites {
		registry.Remove(site)
	}
	log.Info(map[string]any{"trusted": registry.Len()}, "Trust registry initialized")

	// Tracker rules
	store, err := buildTrackerStore(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := trackerlru.New(cfg.TrackerCacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create tracker cache: %w", err)
	}
	repo := trackers.NewRepository(store, cache, factory, cfg.TrackerFPRate)
	if len(cfg.TrackerLists) > 0 {
		// A broken list is reported but does not stop the others from loading.
		rules, err := parsers.LoadFiles(cfg.TrackerLists, logger, now)
		if err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Some tracker lists failed to load")
		}
		// Keep the previous snapshot when nothing could be loaded.
		if len(rules) > 0 || err == nil {
			if err := repo.UpdateAll(rules, uint64(now.Unix()), now.Unix()); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("failed to update tracker rules: %w", err)
			}
		}
	}
	stats := repo.RepoStats()
	log.Info(map[string]any{
		"exact":      stats.Store.ExactKeys,
		"suffix":     stats.Store.SuffixKeys,
		"version":    stats.Store.Version,
		"cache_size": stats.Cache.Capacity,
	}, "Tracker repository initialized")

	// Surrogates
	surrogateStore := surrogates.NewStore(logger)
	if cfg.SurrogatesFile != "" {
		list, err := surrogates.LoadFile(cfg.SurrogatesFile, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to load surrogates: %w", err)
		}
		surrogateStore.Load(list)
	}

	return &repositories{
		upgrader:   oracle,
		trust:      registry,
		trackers:   trackers.NewClassifier(repo, logger),
		surrogates: surrogateStore,
		store:      store,
	}, nil
}

// buildTrackerStore opens the bbolt store when configured, otherwise keeps rules in memory
func buildTrackerStore(cfg *config.AppConfig) (trackers.Store, error) {
	if cfg.TrackerDB == "" {
		log.Info(map[string]any{"type": "memory"}, "Tracker store configured")
		return trackers.NewMemStore(), nil
	}
	store, err := trackerbolt.New(cfg.TrackerDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker store: %w", err)
	}
	log.Info(map[string]any{"type": "bolt", "path": cfg.TrackerDB}, "Tracker store configured")
	return store, nil
}

// Run serves requests until the input ends or ctx is cancelled, then flushes
// pending notifications and closes the tracker store.
func (app *Application) Run(ctx context.Context) error {
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()

	var g errgroup.Group
	g.Go(func() error { return app.listener.Run(listenerCtx) })

	serveErr := app.transport.Serve(ctx, app.evaluator)

	log.Info(map[string]any{"pending_notices": app.listener.Pending()}, "Shutdown initiated")
	stopListener()
	_ = g.Wait()

	st := app.transport.Stats()
	log.Info(map[string]any{
		"served":          st.Served,
		"failed":          st.Failed,
		"dropped_notices": app.listener.Dropped(),
	}, "Request stream closed")

	if err := app.store.Close(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error closing tracker store")
	}
	if serveErr != nil {
		return fmt.Errorf("failed to serve requests: %w", serveErr)
	}
	return nil
}
