package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"memeshop/internal/commerce/printify"
	"memeshop/internal/commerce/shopify"
	"memeshop/internal/journal"
	"memeshop/internal/logging"
	"memeshop/internal/metrics"
	"memeshop/internal/notifications"
	"memeshop/internal/queue"
	"memeshop/internal/services"
	"memeshop/internal/textutil"
)

const (
	stageName            = "publish"
	descriptionSeparator = "<br><br>"
	createdAtLayout      = "2006-01-02"
)

// Commerce is the product API the publisher drives.
type Commerce interface {
	UploadImage(ctx context.Context, fileName string, contents []byte) (string, error)
	CreateProduct(ctx context.Context, req printify.ProductRequest) (*printify.Product, error)
	PublishProduct(ctx context.Context, productID string, req printify.PublishRequest) error
	GetProduct(ctx context.Context, productID string) (*printify.Product, error)
}

// AttemptRecorder persists per-record outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt journal.Attempt) error
}

// Options configures a Publisher.
type Options struct {
	Product          printify.ProductSpec
	SalesChannel     string
	Blurb            string
	StorefrontDomain string
	Now              func() time.Time
}

// Hooks are optional collaborators notified of publish outcomes.
type Hooks struct {
	Journal  AttemptRecorder
	Metrics  *metrics.Recorder
	Notifier notifications.Service
}

// Result summarizes one publish pass.
type Result struct {
	Published int
	Failed    int
	Skipped   int
	Total     int
}

// Publisher turns unlisted records into published storefront listings.
type Publisher struct {
	commerce  Commerce
	intake    *queue.Store
	processed *queue.Store
	opts      Options
	hooks     Hooks
	logger    *slog.Logger
}

// New constructs a Publisher reading intake and writing processed.
func New(commerce Commerce, intake, processed *queue.Store, opts Options, hooks Hooks, logger *slog.Logger) *Publisher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Publisher{
		commerce:  commerce,
		intake:    intake,
		processed: processed,
		opts:      opts,
		hooks:     hooks,
		logger:    logging.NewComponentLogger(logger, stageName),
	}
}

// Run merges the intake into the processed set, lists every record that has
// no listing yet, and rewrites the processed store with all records. A record
// that fails keeps listing_id null and carries last_error; it is retried on
// the next run. Only store I/O aborts the pass.
func (p *Publisher) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, p.logger)
	var result Result

	existing, err := p.processed.Load()
	if err != nil {
		return result, fmt.Errorf("load processed store: %w", err)
	}
	incoming, err := p.intake.Load()
	if err != nil {
		return result, fmt.Errorf("load intake store: %w", err)
	}
	records := queue.Merge(existing, incoming)
	result.Total = len(records)

	for _, rec := range records {
		if rec.IsListed() {
			result.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			if saveErr := p.processed.Save(records); saveErr != nil {
				return result, errors.Join(err, fmt.Errorf("save processed store: %w", saveErr))
			}
			return result, err
		}
		if p.publishRecord(ctx, rec) {
			result.Published++
		} else {
			result.Failed++
		}
	}

	if err := p.processed.Save(records); err != nil {
		return result, fmt.Errorf("save processed store: %w", err)
	}

	logger.Info("publish complete",
		logging.String(logging.FieldEventType, "publish_complete"),
		logging.Int("published", result.Published),
		logging.Int("failed", result.Failed),
		logging.Int("already_listed", result.Skipped),
		logging.Int("records", result.Total),
	)
	return result, nil
}

func (p *Publisher) publishRecord(ctx context.Context, rec *queue.Record) bool {
	ctx = services.WithRecordID(ctx, rec.ID)
	logger := logging.WithContext(ctx, p.logger)

	listing, err := p.createListing(ctx, rec)
	if err != nil {
		rec.SetError(err)
		logging.WarnWithContext(logger, "listing failed; record kept for next run", "publish_failed",
			logging.String("title", rec.Title),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "record stays unlisted and is not posted to social channels"),
		)
		p.recordAttempt(ctx, rec.ID, journal.OutcomeFailure, err.Error(), "")
		p.hooks.Metrics.RecordPublishFailure()
		if p.hooks.Notifier != nil {
			if notifyErr := p.hooks.Notifier.Publish(ctx, notifications.EventPublishFailed, notifications.Payload{
				"title": rec.Title,
				"error": err,
			}); notifyErr != nil {
				logger.Debug("publish failure notification failed", logging.Error(notifyErr))
			}
		}
		return false
	}

	url := p.resolveURL(ctx, logger, rec, listing)
	price := float64(p.opts.Product.PriceCents) / 100
	rec.ListingID = queue.StringPtr(listing.ID)
	if id := listing.StorefrontID(); id != "" {
		rec.StorefrontID = queue.StringPtr(id)
	}
	rec.RetailPrice = queue.Float64Ptr(price)
	rec.StorefrontURL = queue.StringPtr(url)
	rec.CreatedAt = queue.StringPtr(p.opts.Now().UTC().Format(createdAtLayout))
	rec.SetError(nil)

	logger.Info("listing published",
		logging.String(logging.FieldEventType, "listing_published"),
		logging.String("listing_id", listing.ID),
		logging.String("storefront_url", url),
	)
	p.recordAttempt(ctx, rec.ID, journal.OutcomeSuccess, "", url)
	p.hooks.Metrics.RecordPublished()
	return true
}

// createListing runs upload, create, and publish. Any failure aborts the record.
func (p *Publisher) createListing(ctx context.Context, rec *queue.Record) (*printify.Product, error) {
	if strings.TrimSpace(rec.LocalPath) == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "read asset", "record has no local_path", nil)
	}
	contents, err := os.ReadFile(rec.LocalPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "read asset", rec.LocalPath, err)
	}
	fileName := rec.FileName
	if fileName == "" {
		fileName = textutil.BaseNameFromURL(rec.LocalPath)
	}

	imageID, err := p.commerce.UploadImage(ctx, fileName, contents)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	req := printify.NewProductRequest(p.opts.Product, imageID, rec.Title, BuildDescription(rec.Description, p.opts.Blurb), rec.Tags)
	product, err := p.commerce.CreateProduct(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if err := p.commerce.PublishProduct(ctx, product.ID, printify.PublishAll(p.opts.SalesChannel)); err != nil {
		return nil, fmt.Errorf("publish product %s: %w", product.ID, err)
	}
	return product, nil
}

// resolveURL prefers the storefront handle and falls back to the title slug
// when the lookup fails, so a published listing is never left without a URL.
func (p *Publisher) resolveURL(ctx context.Context, logger *slog.Logger, rec *queue.Record, listing *printify.Product) string {
	slug := textutil.Slugify(rec.Title)
	fetched, err := p.commerce.GetProduct(ctx, listing.ID)
	if err != nil {
		logging.WarnWithContext(logger, "storefront lookup failed; using title slug", "storefront_lookup_failed",
			logging.String("listing_id", listing.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "storefront URL may not match the published handle"),
		)
		return shopify.ProductURL(p.opts.StorefrontDomain, "", slug)
	}
	if listing.External == nil && fetched.External != nil {
		listing.External = fetched.External
	}
	return shopify.ProductURL(p.opts.StorefrontDomain, fetched.Handle(), slug)
}

func (p *Publisher) recordAttempt(ctx context.Context, recordID int64, outcome journal.Outcome, errText, url string) {
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
		URL:      url,
	}); err != nil {
		p.logger.Debug("journal attempt failed", logging.Error(err))
	}
}

// BuildDescription appends the product blurb to the record description.
// Newlines in the blurb become <br> so the storefront keeps its layout.
func BuildDescription(description, blurb string) string {
	return description + descriptionSeparator + strings.ReplaceAll(blurb, "\n", "<br>")
}
