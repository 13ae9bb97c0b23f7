package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/polarline/hvacdesk/internal/jobs"
	"github.com/polarline/hvacdesk/internal/platform/archive"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
	"github.com/polarline/hvacdesk/report"
)

// QuoteStore is the part of the quote service the archive job needs.
type QuoteStore interface {
	Load(ctx context.Context, key string) (*quotes.Quote, error)
	AttachArchive(ctx context.Context, key string, doc quotes.ArchivedDocument) error
}

// QuoteArchiveJob renders a saved quote, converts it to PDF, uploads it and
// records the stored object on the quote.
type QuoteArchiveJob struct {
	Quotes    QuoteStore
	Renderer  quotes.Renderer
	Converter report.Converter
	Archiver  archive.Archiver
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewQuoteArchiveJob initialises the archive handler.
func NewQuoteArchiveJob(store QuoteStore, renderer quotes.Renderer, converter report.Converter, archiver archive.Archiver, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteArchiveJob {
	return &QuoteArchiveJob{
		Quotes:    store,
		Renderer:  renderer,
		Converter: converter,
		Archiver:  archiver,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one archive task.
func (j *QuoteArchiveJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Quotes == nil || j.Renderer == nil || j.Converter == nil || j.Archiver == nil {
		return errors.New("quote archive: handler not configured")
	}
	var payload QuoteArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Key == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskQuoteArchive)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger().With(slog.String("key", payload.Key))

	q, err := j.Quotes.Load(ctx, payload.Key)
	if errors.Is(err, quotes.ErrNotFound) {
		logger.Warn("quote vanished before archiving")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err != nil {
		return fmt.Errorf("load quote: %w", err)
	}
	q.Options = payload.Options

	html, err := j.Renderer.Render(ctx, q)
	if err != nil {
		return fmt.Errorf("render quote: %w", err)
	}
	pdf, err := j.Converter.RenderHTML(ctx, html)
	if err != nil {
		return fmt.Errorf("convert quote: %w", err)
	}
	obj, err := j.Archiver.Put(ctx, archive.QuoteKey(q.Key, j.now()), "application/pdf", pdf)
	if err != nil {
		return fmt.Errorf("store pdf: %w", err)
	}
	if err := j.Quotes.AttachArchive(ctx, q.Key, quotes.ArchivedDocument{Object: obj, Options: payload.Options}); err != nil {
		return fmt.Errorf("attach archive: %w", err)
	}
	j.Metrics.AddArchived(obj.Size)
	logger.Info("quote archived", slog.String("object", obj.Key), slog.Int64("bytes", obj.Size))
	return nil
}

func (j *QuoteArchiveJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

func (j *QuoteArchiveJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
