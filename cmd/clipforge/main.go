// Command clipforge runs the feedback revision service: it accepts free-text
// feedback on a generated explainer video, derives structured patches with an
// LLM, and applies them to the project's script and narration documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge/internal/adapter/feedbackfile"
	cfhttp "github.com/clipforge/clipforge/internal/adapter/http"
	"github.com/clipforge/clipforge/internal/adapter/inspector"
	"github.com/clipforge/clipforge/internal/adapter/litellm"
	cfnats "github.com/clipforge/clipforge/internal/adapter/nats"
	"github.com/clipforge/clipforge/internal/adapter/natskv"
	cfotel "github.com/clipforge/clipforge/internal/adapter/otel"
	"github.com/clipforge/clipforge/internal/adapter/postgres"
	"github.com/clipforge/clipforge/internal/adapter/projectfs"
	"github.com/clipforge/clipforge/internal/adapter/ristretto"
	"github.com/clipforge/clipforge/internal/adapter/tiered"
	"github.com/clipforge/clipforge/internal/adapter/ws"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/logger"
	"github.com/clipforge/clipforge/internal/middleware"
	"github.com/clipforge/clipforge/internal/port/cache"
	"github.com/clipforge/clipforge/internal/port/feedbackstore"
	inspectorport "github.com/clipforge/clipforge/internal/port/inspector"
	"github.com/clipforge/clipforge/internal/port/messagequeue"
	"github.com/clipforge/clipforge/internal/resilience"
	"github.com/clipforge/clipforge/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"project_dir", cfg.Project.Dir,
		"store_backend", cfg.Store.Backend,
		"inspector_mode", cfg.Inspector.Mode,
	)

	// --- Telemetry ---
	shutdownOtel, err := cfotel.Init(ctx, cfg.Logging.Service, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Feedback store ---
	var store feedbackstore.Store
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		store = postgres.NewStore(pool, cfg.Project.ID)
		log.Info("postgres feedback store ready")
	default:
		store = feedbackfile.NewStore(cfg.Project.Dir, cfg.Project.ID, log)
		log.Info("file feedback store ready", "dir", cfg.Project.Dir)
	}

	// --- NATS (optional) ---
	var queue messagequeue.Queue
	var l2 cache.Cache
	if cfg.NATS.URL != "" {
		nq, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = nq.Close() }()
		queue = nq

		kv, err := nq.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		l2 = natskv.New(kv)
		log.Info("nats connected", "url", cfg.NATS.URL)
	}

	// --- LLM provider with breaker and layered response cache ---
	llmClient := litellm.NewClient(cfg.LiteLLM)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()
	if l2 != nil {
		llmClient.SetCache(tiered.New(l1, l2, cfg.Cache.L2TTL), cfg.Cache.L2TTL)
	} else {
		llmClient.SetCache(l1, cfg.Cache.L2TTL)
	}

	// --- Project documents and scene inspector ---
	projects := projectfs.NewStore(cfg.Project.Dir)

	var insp inspectorport.Inspector
	switch cfg.Inspector.Mode {
	case "service":
		sc := inspector.NewServiceClient(cfg.Inspector)
		sc.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		insp = sc
	default:
		scenesDir := filepath.Join(cfg.Project.Dir, cfg.Inspector.ScenesDir)
		insp = inspector.NewAgent(llmClient, projects, scenesDir, log)
	}

	// --- Pipeline ---
	hub := ws.NewHub()
	parser := service.NewParser(llmClient, projects, log)
	generator := service.NewGenerator(llmClient, projects, log)
	applicator := service.NewApplicator(projects, insp, hub, log)
	processor := service.NewProcessor(store, parser, generator, applicator,
		hub, queue, metrics, cfg.Pipeline.VerifyAfterApply, log)

	// --- HTTP ---
	handlers := cfhttp.NewHandlers(processor, projects, log)

	r := chi.NewRouter()
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))

	cfhttp.MountRoutes(r, handlers, hub)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Pipeline runs block on LLM calls for minutes; the write timeout
		// must outlast a full synchronous apply.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
