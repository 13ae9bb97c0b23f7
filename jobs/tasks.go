package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/polarline/hvacdesk/internal/sales/quotes"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteArchive renders a saved quote to PDF and stores it.
	TaskQuoteArchive = "quote:archive"
	// TaskQuoteExpire marks stale sent quotes as expired.
	TaskQuoteExpire = "quote:expire"
)

// QuoteArchivePayload names the quote and the documents to archive.
type QuoteArchivePayload struct {
	Key     string                 `json:"key"`
	Options quotes.DocumentOptions `json:"options"`
}

// NewQuoteArchiveTask constructs an archive task.
func NewQuoteArchiveTask(payload QuoteArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteArchive, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// QuoteExpirePayload sets how long a sent quote stays valid.
type QuoteExpirePayload struct {
	ValidityDays int `json:"validity_days"`
}

// NewQuoteExpireTask builds the periodic expiry task.
func NewQuoteExpireTask(validityDays int) (*asynq.Task, error) {
	body, err := json.Marshal(QuoteExpirePayload{ValidityDays: validityDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpire, body, asynq.Queue(QueueDefault)), nil
}
