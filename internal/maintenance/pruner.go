package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"memeshop/internal/journal"
	"memeshop/internal/logging"
	"memeshop/internal/metrics"
	"memeshop/internal/notifications"
	"memeshop/internal/queue"
	"memeshop/internal/services"
)

const (
	stageName       = "prune"
	createdAtLayout = "2006-01-02"
	day             = 24 * time.Hour
)

// SalesCounter reports storefront sales for a product.
type SalesCounter interface {
	CountSales(ctx context.Context, productID string, daysBack int) (int, error)
}

// ListingDeleter removes a listing from the commerce platform.
type ListingDeleter interface {
	DeleteProduct(ctx context.Context, productID string) error
}

// AttemptRecorder persists per-record outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt journal.Attempt) error
}

// Options configures the pruning thresholds.
type Options struct {
	MinSales        int
	MaxAgeDays      int
	SalesWindowDays int
	CacheSize       int
	// DryRun reports what would be pruned without deleting anything.
	DryRun bool
	Now    func() time.Time
}

// Hooks are optional collaborators notified of prune outcomes.
type Hooks struct {
	Journal  AttemptRecorder
	Metrics  *metrics.Recorder
	Notifier notifications.Service
}

// Result summarizes one prune pass.
type Result struct {
	Checked int
	Pruned  int
	Kept    int
	Failed  int
	Young   int
}

// Pruner deletes old listings that have not sold enough.
type Pruner struct {
	sales     SalesCounter
	deleter   ListingDeleter
	processed *queue.Store
	opts      Options
	hooks     Hooks
	cache     *lru.Cache[string, int]
	logger    *slog.Logger
}

// New constructs a Pruner. Sales counts are cached per storefront product for
// the lifetime of the Pruner.
func New(sales SalesCounter, deleter ListingDeleter, processed *queue.Store, opts Options, hooks Hooks, logger *slog.Logger) (*Pruner, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cache, err := lru.New[string, int](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create sales cache: %w", err)
	}
	return &Pruner{
		sales:     sales,
		deleter:   deleter,
		processed: processed,
		opts:      opts,
		hooks:     hooks,
		cache:     cache,
		logger:    logging.NewComponentLogger(logger, stageName),
	}, nil
}

// Run checks every listed record older than MaxAgeDays. When its sales over
// the last SalesWindowDays fall below MinSales the listing is deleted and the
// record marked pruned_at. Lookup or deletion failures leave the record
// untouched. The processed store is rewritten only when a record changed.
func (p *Pruner) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, p.logger)
	var result Result

	records, err := p.processed.Load()
	if err != nil {
		return result, fmt.Errorf("load processed store: %w", err)
	}

	now := p.opts.Now().UTC()
	updated := false
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, p.finish(records, updated, err)
		}
		created, ok := eligible(rec)
		if !ok {
			continue
		}
		if created.Add(time.Duration(p.opts.MaxAgeDays) * day).After(now) {
			result.Young++
			continue
		}
		result.Checked++
		if p.pruneRecord(ctx, rec, now, &result) {
			updated = true
		}
	}

	if err := p.finish(records, updated, nil); err != nil {
		return result, err
	}
	logger.Info("prune complete",
		logging.String(logging.FieldEventType, "prune_complete"),
		logging.Int("checked", result.Checked),
		logging.Int("pruned", result.Pruned),
		logging.Int("kept", result.Kept),
		logging.Int("failed", result.Failed),
		logging.Int("too_young", result.Young),
		logging.Bool("dry_run", p.opts.DryRun),
	)
	if p.hooks.Notifier != nil && !p.opts.DryRun {
		if err := p.hooks.Notifier.Publish(ctx, notifications.EventListingsPruned, notifications.Payload{"count": result.Pruned}); err != nil {
			logger.Debug("prune notification failed", logging.Error(err))
		}
	}
	return result, nil
}

func (p *Pruner) pruneRecord(ctx context.Context, rec *queue.Record, now time.Time, result *Result) bool {
	ctx = services.WithRecordID(ctx, rec.ID)
	logger := logging.WithContext(ctx, p.logger)
	storefrontID := *rec.StorefrontID

	sales, err := p.salesFor(ctx, storefrontID)
	if err != nil {
		result.Failed++
		logging.WarnWithContext(logger, "sales lookup failed; listing kept", "sales_lookup_failed",
			logging.String("storefront_id", storefrontID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "listing is re-checked on the next prune"),
		)
		p.recordAttempt(ctx, rec.ID, journal.OutcomeFailure, err.Error())
		return false
	}
	if sales >= p.opts.MinSales {
		result.Kept++
		logger.Debug("listing kept", logging.Int("sales", sales), logging.String("title", rec.Title))
		return false
	}

	listingID := *rec.ListingID
	if p.opts.DryRun {
		result.Pruned++
		logger.Info("listing would be pruned",
			logging.String(logging.FieldEventType, "prune_dry_run"),
			logging.String("listing_id", listingID),
			logging.Int("sales", sales),
		)
		return false
	}

	if err := p.deleter.DeleteProduct(ctx, listingID); err != nil && !errors.Is(err, services.ErrNotFound) {
		result.Failed++
		logging.WarnWithContext(logger, "listing deletion failed; record kept", "prune_delete_failed",
			logging.String("listing_id", listingID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "unsold listing stays live until the next prune"),
		)
		p.recordAttempt(ctx, rec.ID, journal.OutcomeFailure, err.Error())
		return false
	}

	rec.PrunedAt = queue.StringPtr(now.Format(time.RFC3339))
	result.Pruned++
	p.hooks.Metrics.RecordPruned()
	p.recordAttempt(ctx, rec.ID, journal.OutcomeSuccess, "")
	logger.Info("listing pruned",
		logging.String(logging.FieldEventType, "listing_pruned"),
		logging.String("listing_id", listingID),
		logging.String("title", rec.Title),
		logging.Int("sales", sales),
	)
	return true
}

func (p *Pruner) salesFor(ctx context.Context, storefrontID string) (int, error) {
	if cached, ok := p.cache.Get(storefrontID); ok {
		return cached, nil
	}
	sales, err := p.sales.CountSales(ctx, storefrontID, p.opts.SalesWindowDays)
	if err != nil {
		return 0, err
	}
	p.cache.Add(storefrontID, sales)
	return sales, nil
}

func (p *Pruner) finish(records []*queue.Record, updated bool, runErr error) error {
	if updated {
		if err := p.processed.Save(records); err != nil {
			return errors.Join(runErr, fmt.Errorf("save processed store: %w", err))
		}
	}
	return runErr
}

func (p *Pruner) recordAttempt(ctx context.Context, recordID int64, outcome journal.Outcome, errText string) {
	if p.hooks.Journal == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	if err := p.hooks.Journal.RecordAttempt(ctx, journal.Attempt{
		RunID:    runID,
		RecordID: recordID,
		Stage:    stageName,
		Outcome:  outcome,
		Error:    errText,
	}); err != nil {
		p.logger.Debug("journal attempt failed", logging.Error(err))
	}
}

// eligible returns the creation date of a live, listed record that carries
// both a creation date and a storefront id.
func eligible(rec *queue.Record) (time.Time, bool) {
	if rec == nil || !rec.IsListed() || rec.IsPruned() {
		return time.Time{}, false
	}
	if rec.CreatedAt == nil || rec.StorefrontID == nil || strings.TrimSpace(*rec.StorefrontID) == "" {
		return time.Time{}, false
	}
	created, err := time.Parse(createdAtLayout, strings.TrimSpace(*rec.CreatedAt))
	if err != nil {
		return time.Time{}, false
	}
	return created, true
}
