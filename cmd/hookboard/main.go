package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/soochol/hookboard/internal/api"
	"github.com/soochol/hookboard/internal/config"
	"github.com/soochol/hookboard/internal/crypto"
	"github.com/soochol/hookboard/internal/db"
	"github.com/soochol/hookboard/internal/observability"
	"github.com/soochol/hookboard/internal/repository"
	"github.com/soochol/hookboard/internal/services"
	"github.com/soochol/hookboard/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		if err := serve(); err != nil {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println("hookboard v0.1.0")
	fmt.Println("Usage: hookboard serve")
}

func serve() error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogger(cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := crypto.ParseKey(cfg.Security.EncryptionKey)
	if err != nil {
		return err
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		return err
	}
	if !enc.Enabled() {
		slog.Warn("no encryption key configured, header values are stored as plaintext")
	}

	memWorkflows := repository.NewMemoryWorkflowRepository()
	memExecs := repository.NewMemoryExecutionRepository(cfg.History.MaxExecutions)
	var (
		workflowRepo repository.WorkflowRepository  = memWorkflows
		execRepo     repository.ExecutionRepository = memExecs
	)
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("database schema: %w", err)
		}
		workflowRepo = repository.NewPersistentWorkflowRepository(memWorkflows, database)
		execRepo = repository.NewPersistentExecutionRepository(memExecs, database)
		slog.Info("using PostgreSQL persistence")
	} else {
		slog.Info("no database configured, using in-memory storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.InitMetrics(reg)

	t := cfg.Trigger
	proxy := webhook.NewProxy(
		webhook.NewCaller(t.MaxResponseBytes),
		webhook.Timeouts{Test: t.TestTimeout, Simple: t.SimpleTimeout, Complex: t.ComplexTimeout},
		webhook.DefaultHint(t.ComplexThreshold, t.ComplexKeywords),
	)

	workflowSvc := services.NewWorkflowService(workflowRepo, execRepo, enc)
	limiter := services.NewConcurrencyLimiter(services.ConcurrencyLimits{
		GlobalMax:   cfg.Concurrency.GlobalMax,
		PerWorkflow: cfg.Concurrency.PerWorkflow,
	})
	board := services.NewStatusBoard()
	orchestrator := services.NewOrchestrator(services.OrchestratorDeps{
		Workflows:  workflowSvc,
		Executions: execRepo,
		Invoker:    proxy,
		Limiter:    limiter,
		Board:      board,
		Metrics:    metrics,
		ResetDelay: t.StatusResetDelay,
	})
	monitor := services.NewConnectivityMonitor(workflowSvc, proxy, cfg.Monitor.Parallelism, metrics)
	if cfg.Monitor.Schedule != "" {
		if err := monitor.Start(cfg.Monitor.Schedule); err != nil {
			return err
		}
	}

	workflowSvc.OnDelete(board.Forget)
	workflowSvc.OnDelete(monitor.Forget)
	workflowSvc.OnDelete(limiter.Forget)

	srv := api.NewServer(workflowSvc, orchestrator, execRepo)
	srv.SetConcurrencyLimiter(limiter)
	srv.SetMonitor(monitor)
	srv.SetMetrics(metrics, reg)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Event streams end when the board closes.
	httpServer.RegisterOnShutdown(board.Close)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting hookboard server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	monitor.Stop()
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		slog.Warn("in-flight triggers did not finish", "err", err)
	}
	return nil
}

func setupLogger(format string) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
