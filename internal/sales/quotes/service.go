package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/platform/docstore"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
)

// ReferenceSource supplies catalog, tier and tax tables.
type ReferenceSource interface {
	Get(ctx context.Context) (reference.Reference, error)
}

// Renderer turns a quote into the printable HTML bundle.
type Renderer interface {
	Render(ctx context.Context, q *Quote) (string, error)
}

// Config tunes numbering and defaults.
type Config struct {
	SeedNumber       int
	DefaultForexRate float64
	Now              func() time.Time
}

// Service provides business logic for quotes.
type Service struct {
	repo     Repository
	ref      ReferenceSource
	renderer Renderer
	cfg      Config
	logger   *slog.Logger
}

// NewService constructs a quote service. renderer may be nil when previews
// are not needed.
func NewService(repo Repository, ref ReferenceSource, renderer Renderer, cfg Config, logger *slog.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.SeedNumber < 1 {
		cfg.SeedNumber = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ref: ref, renderer: renderer, cfg: cfg, logger: logger}
}

// ============================================================================
// DRAFTS AND TOTALS
// ============================================================================

// NewDraft returns an empty quote with the next number reserved for display.
func (s *Service) NewDraft(ctx context.Context) (*Quote, error) {
	next, err := s.NextNumber(ctx)
	if err != nil {
		return nil, err
	}
	return &Quote{
		SchemaVersion: SchemaVersion,
		Status:        StatusDraft,
		Customer:      Customer{SaleType: pricing.SaleDomestic},
		Control:       DocumentControl{QuoteNumber: next, Year: s.cfg.Now().Year()},
		Costing:       pricing.Costing{ForexRate: s.cfg.DefaultForexRate},
		Options:       DocumentOptions{Quotation: true},
		Items:         []LineItem{},
	}, nil
}

// Summary is the live calculation shown while a quote is edited.
type Summary struct {
	Totals      pricing.Totals       `json:"totals"`
	LocalTotals pricing.Totals       `json:"local_totals"`
	Landed      *pricing.LandedCost  `json:"landed_cost,omitempty"`
	TaxInvoice  pricing.TaxBreakdown `json:"tax_invoice"`
}

// Summarize computes totals in both currencies, the landed cost when asked
// for, and the tax invoice figures.
func (s *Service) Summarize(ctx context.Context, q *Quote) (Summary, error) {
	ref, err := s.ref.Get(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load reference: %w", err)
	}
	work := q.Clone()
	work.Normalize()
	totals := work.Calculate()
	rate := work.Costing.ForexRate
	if rate <= 0 {
		rate = s.cfg.DefaultForexRate
	}
	summary := Summary{
		Totals:      totals.Rounded(),
		LocalTotals: totals.Convert(rate).Rounded(),
		TaxInvoice: pricing.TaxInvoice(
			pricing.ToLocal(totals.FinalSalePrice, rate),
			work.Customer.SaleType,
			work.Terms.WithholdingPct,
			ref.VATRate(),
		).Rounded(),
	}
	if work.Options.IncludeLandedCost {
		landed := pricing.Landed(totals.FinalSalePrice, work.Costing).Rounded()
		summary.Landed = &landed
	}
	return summary, nil
}

// ApplyTier sets the discount from the customer's pricing tier. Unknown or
// empty tiers leave the quote unchanged.
func (s *Service) ApplyTier(ctx context.Context, q *Quote) error {
	if strings.TrimSpace(q.Customer.PricingTier) == "" {
		return nil
	}
	ref, err := s.ref.Get(ctx)
	if err != nil {
		return fmt.Errorf("load reference: %w", err)
	}
	if tier, ok := ref.Tier(q.Customer.PricingTier); ok {
		q.Terms.DiscountPct = tier.DiscountPct
	}
	return nil
}

// Preview validates q and renders its documents.
func (s *Service) Preview(ctx context.Context, q *Quote) (string, error) {
	if s.renderer == nil {
		return "", errors.New("quote: no renderer configured")
	}
	work := q.Clone()
	work.Normalize()
	if err := Validate(work); err != nil {
		return "", err
	}
	if work.ID == "" && work.Control.QuoteNumber > 0 {
		year := work.Control.Year
		if year == 0 {
			year = s.cfg.Now().Year()
		}
		work.ID = FormatID(work.Control.QuoteNumber, year, work.Control.Revision)
	}
	return s.renderer.Render(ctx, work)
}

// ============================================================================
// PERSISTENCE
// ============================================================================

// NextNumber scans saved quotes and returns the next free number.
func (s *Service) NextNumber(ctx context.Context) (int, error) {
	list, err := s.repo.List(ctx, docstore.ListOptions{})
	if err != nil {
		s.logger.Error("list quotes for numbering", slog.Any("error", err))
		return 0, fmt.Errorf("%w: list quotes: %v", ErrPersistence, err)
	}
	ids := make([]string, 0, len(list))
	for _, q := range list {
		ids = append(ids, q.ID)
	}
	return NextNumber(ids, s.cfg.SeedNumber), nil
}

// Save validates draft, snapshots its totals and writes it. A draft that
// carries a Key is an edit and replaces that document, re-deriving its id
// from number, year and revision. A draft without a Key always creates a new
// document; when its number is already used it is given the next free one.
// draft itself is not modified.
func (s *Service) Save(ctx context.Context, draft *Quote) (*Quote, error) {
	q := draft.Clone()
	q.Normalize()
	if err := Validate(q); err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	if q.Control.QuoteNumber <= 0 {
		next, err := s.NextNumber(ctx)
		if err != nil {
			return nil, err
		}
		q.Control.QuoteNumber = next
	}
	if q.Control.Year == 0 {
		q.Control.Year = now.Year()
	}
	q.Key = strings.TrimSpace(q.Key)
	q.SchemaVersion = SchemaVersion
	q.UpdatedAt = now
	totals := q.Calculate().Rounded()
	q.Totals = &totals

	var err error
	if q.Key != "" {
		err = s.replace(ctx, q)
	} else {
		q.CreatedAt = now
		err = s.create(ctx, q)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrIdentityTaken) {
			return nil, err
		}
		s.logger.Error("save quote", slog.String("key", q.Key), slog.Any("error", err))
		return nil, fmt.Errorf("%w: save %s: %v", ErrPersistence, q.ID, err)
	}
	s.logger.Info("quote saved", slog.String("id", q.ID), slog.String("key", q.Key), slog.Float64("final", totals.FinalSalePrice))
	return q, nil
}

// replace writes an edit over the document stored under q.Key.
func (s *Service) replace(ctx context.Context, q *Quote) error {
	existing, err := s.repo.Get(ctx, q.Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, q.Key)
		}
		return err
	}
	q.ID = FormatID(q.Control.QuoteNumber, q.Control.Year, q.Control.Revision)
	taken, err := s.identityTaken(ctx, q.ID, q.Key)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrIdentityTaken, q.ID)
	}
	s.inherit(q, existing)
	return s.repo.Replace(ctx, q)
}

// maxRenumber bounds how often create moves a new quote to the next number.
const maxRenumber = 3

// create stores q as a new document and never touches an existing one.
func (s *Service) create(ctx context.Context, q *Quote) error {
	q.Status = StatusDraft
	q.Archives = nil
	for attempt := 0; ; attempt++ {
		q.ID = FormatID(q.Control.QuoteNumber, q.Control.Year, q.Control.Revision)
		q.Key = StorageKey(q.ID)
		taken, err := s.identityTaken(ctx, q.ID, "")
		if err != nil {
			return err
		}
		if !taken {
			err = s.repo.Create(ctx, q)
			if !errors.Is(err, ErrDuplicate) {
				return err
			}
		}
		if attempt == maxRenumber {
			return fmt.Errorf("%w: %s", ErrIdentityTaken, q.ID)
		}
		next, err := s.NextNumber(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("quote number in use, renumbering", slog.String("id", q.ID), slog.Int("next", next))
		q.Control.QuoteNumber = next
	}
}

// identityTaken reports whether a document other than exceptKey already
// carries id.
func (s *Service) identityTaken(ctx context.Context, id, exceptKey string) (bool, error) {
	list, err := s.repo.List(ctx, docstore.ListOptions{})
	if err != nil {
		return false, err
	}
	for _, other := range list {
		if other.Key != exceptKey && other.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// inherit keeps the fields an edit must not change.
func (s *Service) inherit(q, existing *Quote) {
	q.CreatedAt = existing.CreatedAt
	q.Status = existing.Status
	if len(q.Archives) == 0 {
		q.Archives = existing.Archives
	}
}

// Load reads and migrates a quote for editing.
func (s *Service) Load(ctx context.Context, key string) (*Quote, error) {
	q, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		s.logger.Error("load quote", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("%w: load %s: %v", ErrPersistence, key, err)
	}
	return q, nil
}

// Delete removes a saved quote.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.logger.Error("delete quote", slog.String("key", key), slog.Any("error", err))
		return fmt.Errorf("%w: delete %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// ListOptions orders the saved quote list.
type ListOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
}

var sortable = map[string]bool{"id": true, "created_at": true, "updated_at": true, "status": true}

// List returns saved quotes. Unknown order fields fall back to updated_at.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Quote, error) {
	orderBy := opts.OrderBy
	if !sortable[orderBy] {
		orderBy = "updated_at"
	}
	list, err := s.repo.List(ctx, docstore.ListOptions{OrderBy: orderBy, Descending: opts.Descending, Limit: opts.Limit})
	if err != nil {
		s.logger.Error("list quotes", slog.Any("error", err))
		return nil, fmt.Errorf("%w: list quotes: %v", ErrPersistence, err)
	}
	return list, nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// SetStatus moves a quote along its lifecycle.
func (s *Service) SetStatus(ctx context.Context, key string, next Status) (*Quote, error) {
	q, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatus, q.Status, next)
	}
	now := s.cfg.Now()
	updates := map[string]any{
		"status":     next,
		"updated_at": now,
	}
	if err := s.repo.Patch(ctx, key, updates); err != nil {
		s.logger.Error("set quote status", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("%w: status %s: %v", ErrPersistence, key, err)
	}
	q.Status = next
	q.UpdatedAt = now
	return q, nil
}

// AttachArchive records a stored PDF on the quote.
func (s *Service) AttachArchive(ctx context.Context, key string, doc ArchivedDocument) error {
	q, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	archives := append(q.Archives, doc)
	if err := s.repo.Patch(ctx, key, map[string]any{"archives": archives}); err != nil {
		s.logger.Error("attach archive", slog.String("key", key), slog.Any("error", err))
		return fmt.Errorf("%w: archive %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// ExpireStale marks sent quotes untouched for longer than validity as
// expired and returns how many changed.
func (s *Service) ExpireStale(ctx context.Context, validity time.Duration) (int, error) {
	list, err := s.repo.List(ctx, docstore.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: list quotes: %v", ErrPersistence, err)
	}
	cutoff := s.cfg.Now().Add(-validity)
	expired := 0
	for _, q := range list {
		if q.Status != StatusSent || !q.UpdatedAt.Before(cutoff) {
			continue
		}
		if _, err := s.SetStatus(ctx, q.Key, StatusExpired); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
