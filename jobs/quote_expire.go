package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/polarline/hvacdesk/internal/jobs"
)

// DefaultValidityDays applies when the payload leaves validity unset.
const DefaultValidityDays = 30

// QuoteExpirer is implemented by the quote service.
type QuoteExpirer interface {
	ExpireStale(ctx context.Context, validity time.Duration) (int, error)
}

// QuoteExpireJob moves sent quotes past their validity to EXPIRED.
type QuoteExpireJob struct {
	Quotes  QuoteExpirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewQuoteExpireJob initialises the expiry handler.
func NewQuoteExpireJob(quotes QuoteExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteExpireJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteExpireJob{Quotes: quotes, Logger: logger, Metrics: metrics}
}

// Handle executes one expiry sweep.
func (j *QuoteExpireJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Quotes == nil {
		return errors.New("quote expire: handler not configured")
	}
	var payload QuoteExpirePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.ValidityDays <= 0 {
		payload.ValidityDays = DefaultValidityDays
	}

	tracker := j.Metrics.Track(TaskQuoteExpire)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	n, err := j.Quotes.ExpireStale(ctx, time.Duration(payload.ValidityDays)*24*time.Hour)
	if err != nil {
		j.Logger.Error("expire quotes", slog.Any("error", err))
		return err
	}
	j.Metrics.AddExpired(n)
	if n > 0 {
		j.Logger.Info("quotes expired", slog.Int("count", n), slog.Int("validity_days", payload.ValidityDays))
	}
	return nil
}
