package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/polarline/hvacdesk/internal/app"
	jobmetrics "github.com/polarline/hvacdesk/internal/jobs"
	"github.com/polarline/hvacdesk/internal/observability"
	"github.com/polarline/hvacdesk/internal/platform/archive"
	"github.com/polarline/hvacdesk/jobs"
	"github.com/polarline/hvacdesk/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	stack, err := app.BuildQuoteStack(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("build quote stack", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(context.Background()); err != nil {
			logger.Warn("close quote stack", slog.Any("error", err))
		}
	}()

	converter, err := report.NewConverter(cfg.PDFBackend, cfg.GotenbergURL, cfg.ChromePath)
	if err != nil {
		logger.Error("init pdf converter", slog.Any("error", err))
		os.Exit(1)
	}
	archiver, err := archive.New(ctx, cfg.ArchiveOptions())
	if err != nil {
		logger.Error("init archive", slog.Any("error", err))
		os.Exit(1)
	}

	archiveJob := jobs.NewQuoteArchiveJob(stack.Quotes, stack.Renderer, converter, archiver, logger, jobMetrics)
	expireJob := jobs.NewQuoteExpireJob(stack.Quotes, logger, jobMetrics)

	expireTask, err := jobs.NewQuoteExpireTask(cfg.QuoteValidityDays)
	if err != nil {
		logger.Error("build expire task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskQuoteExpire, Handler: expireJob.Handle},
	}
	if archiver != nil {
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskQuoteArchive, Handler: archiveJob.Handle})
	} else {
		logger.Warn("ARCHIVE_BACKEND is none, quote:archive tasks stay queued")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.QuoteExpireCron, Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	go serveMetrics(ctx, cfg.WorkerMetricsAddr, metrics.Handler(), logger)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("worker metrics listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("worker metrics server", slog.Any("error", err))
	}
}
