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

	"github.com/hibiken/asynq"

	"github.com/polarline/hvacdesk/cmd/hvacdesk/cli"
	"github.com/polarline/hvacdesk/internal/app"
	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/observability"
	quoteshttp "github.com/polarline/hvacdesk/internal/sales/quotes/http"
	"github.com/polarline/hvacdesk/jobs"
	"github.com/polarline/hvacdesk/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg, os.Args[2:]))
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		QuotesHandler: quoteshttp.NewHandler(quoteshttp.Params{
			Service:      stack.Quotes,
			Reference:    stack.Reference,
			Converter:    converter,
			Jobs:         jobClient,
			DefaultForex: cfg.DefaultForexRate,
			Logger:       logger,
		}),
		ReferenceHandler: reference.NewHandler(stack.Reference, logger),
		ReportHandler:    report.NewHandler(converter, logger),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles `hvacdesk jobs trigger <task> [key]` and
// `hvacdesk jobs stats`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: hvacdesk jobs trigger <task> [key] | hvacdesk jobs stats")
		return 2
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: hvacdesk jobs trigger <task> [key]")
			return 2
		}
		key := ""
		if len(args) > 2 {
			key = args[2]
		}
		info, err := jobsCLI.Trigger(ctx, args[1], cli.TriggerOptions{Key: key, ValidityDays: cfg.QuoteValidityDays})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s (%s)\n", info.Type, info.ID)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs command %q\n", args[0])
		return 2
	}
}
