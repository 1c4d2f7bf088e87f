package distribute

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"memeshop/internal/journal"
	"memeshop/internal/logging"
	"memeshop/internal/metrics"
	"memeshop/internal/notifications"
	"memeshop/internal/queue"
	"memeshop/internal/retry"
	"memeshop/internal/services"
)

const stageName = "distribute"

// Channel posts a listed record to one social network and returns the public
// post URL.
type Channel interface {
	Name() string
	Post(ctx context.Context, rec *queue.Record) (string, error)
}

// AttemptRecorder persists per-attempt outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt journal.Attempt) error
}

// Options configures the retry policy applied to every channel post.
type Options struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep replaces the backoff timer; nil uses retry.Sleep.
	Sleep retry.Sleeper
}

// Hooks are optional collaborators notified of posting outcomes.
type Hooks struct {
	Journal  AttemptRecorder
	Metrics  *metrics.Recorder
	Notifier notifications.Service
}

// Result summarizes one distribution pass.
type Result struct {
	Posted        int
	Exhausted     int
	AssetsDeleted int
	Updated       bool
}

// Poster fans listed records out to the configured social channels.
type Poster struct {
	channels  []Channel
	names     []string
	intake    *queue.Store
	processed *queue.Store
	opts      Options
	hooks     Hooks
	logger    *slog.Logger
}

// New constructs a Poster. Channels are attempted in the given order.
func New(channels []Channel, intake, processed *queue.Store, opts Options, hooks Hooks, logger *slog.Logger) *Poster {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	return &Poster{
		channels:  channels,
		names:     names,
		intake:    intake,
		processed: processed,
		opts:      opts,
		hooks:     hooks,
		logger:    logging.NewComponentLogger(logger, stageName),
	}
}

// Run posts every listed record to each channel that lacks a URL. Each post
// is retried with exponential backoff; a channel that exhausts its attempts
// keeps a null URL and the local asset is deleted at once. The asset is also
// deleted once every channel has a URL. The processed store is rewritten only
// when a URL was recorded, and the intake file is truncated at the end of
// every completed pass.
func (p *Poster) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, p.logger)
	var result Result

	records, err := p.processed.Load()
	if err != nil {
		return result, fmt.Errorf("load processed store: %w", err)
	}

	for _, rec := range records {
		if !rec.IsListed() || rec.IsPruned() {
			continue
		}
		if err := p.distributeRecord(ctx, rec, &result); err != nil {
			if saveErr := p.saveIfUpdated(records, result.Updated); saveErr != nil {
				return result, errors.Join(err, saveErr)
			}
			return result, err
		}
	}

	if err := p.saveIfUpdated(records, result.Updated); err != nil {
		return result, err
	}
	if err := p.intake.Truncate(); err != nil {
		return result, fmt.Errorf("truncate intake store: %w", err)
	}

	logger.Info("distribution complete",
		logging.String(logging.FieldEventType, "distribute_complete"),
		logging.Int("posted", result.Posted),
		logging.Int("exhausted", result.Exhausted),
		logging.Int("assets_deleted", result.AssetsDeleted),
		logging.Bool("store_updated", result.Updated),
	)
	return result, nil
}

func (p *Poster) distributeRecord(ctx context.Context, rec *queue.Record, result *Result) error {
	ctx = services.WithRecordID(ctx, rec.ID)
	logger := logging.WithContext(ctx, p.logger)

	pending := rec.PendingChannels(p.names)
	if len(pending) == 0 {
		p.deleteAsset(logger, rec, result)
		return nil
	}
	if !assetExists(rec.LocalPath) {
		logger.Debug("local asset missing; channels receive the record as-is",
			logging.String("local_path", rec.LocalPath),
			logging.Any("channels", pending),
		)
	}

	rec.EnsureChannels(p.names)
	for _, ch := range p.channels {
		name := ch.Name()
		if rec.HasChannelURL(name) {
			continue
		}
		url, err := p.postWithRetry(ctx, ch, rec)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.handleExhausted(services.WithChannel(ctx, name), rec, err, result)
			continue
		}
		if rec.SetChannelURL(name, url) {
			result.Updated = true
			result.Posted++
			p.hooks.Metrics.RecordChannelPost(name, "posted")
			logger.Info("posted to channel",
				logging.String(logging.FieldEventType, "channel_posted"),
				logging.String(logging.FieldChannel, name),
				logging.String("url", url),
			)
		}
	}

	if rec.AllPosted(p.names) {
		p.deleteAsset(logger, rec, result)
		logger.Info("record distributed to every channel",
			logging.String(logging.FieldEventType, "record_distributed"),
			logging.String("title", rec.Title),
		)
	}
	return nil
}

func (p *Poster) postWithRetry(ctx context.Context, ch Channel, rec *queue.Record) (string, error) {
	name := ch.Name()
	ctx = services.WithChannel(ctx, name)
	logger := logging.WithContext(ctx, p.logger)

	policy := retry.Policy{
		Attempts:  p.opts.Attempts,
		BaseDelay: p.opts.BaseDelay,
		Sleep:     p.opts.Sleep,
		OnFailure: func(attempt int, err error, wait time.Duration) {
			logging.WarnWithContext(logger, "channel post failed", "channel_post_failed",
				logging.Int("attempt", attempt+1),
				logging.Duration("retry_in", wait),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
				logging.String(logging.FieldImpact, "post retried after backoff"),
			)
			p.recordAttempt(ctx, rec.ID, attempt, journal.OutcomeFailure, err.Error(), "")
			p.hooks.Metrics.ObserveRetryWait(name, wait)
		},
	}
	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) (string, error) {
		url, err := ch.Post(ctx, rec)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(url) == "" {
			return "", services.Wrap(services.ErrExternal, stageName, "post", name+" returned an empty url", nil)
		}
		p.recordAttempt(ctx, rec.ID, attempt, journal.OutcomeSuccess, "", url)
		return url, nil
	})
}

func (p *Poster) handleExhausted(ctx context.Context, rec *queue.Record, err error, result *Result) {
	logger := logging.WithContext(ctx, p.logger)
	channel, _ := services.ChannelFromContext(ctx)
	result.Exhausted++

	logging.ErrorWithContext(logger, "channel post abandoned; deleting asset", "channel_exhausted",
		logging.String("title", rec.Title),
		logging.Int("attempts", p.attempts()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
	)
	p.recordAttempt(ctx, rec.ID, p.attempts(), journal.OutcomeExhausted, err.Error(), "")
	p.hooks.Metrics.RecordChannelPost(channel, "exhausted")
	if p.hooks.Notifier != nil {
		if notifyErr := p.hooks.Notifier.Publish(ctx, notifications.EventChannelExhausted, notifications.Payload{
			"channel":  channel,
			"title":    rec.Title,
			"attempts": p.attempts(),
			"error":    err,
		}); notifyErr != nil {
			logger.Debug("exhaustion notification failed", logging.Error(notifyErr))
		}
	}
	p.deleteAsset(logger, rec, result)
}

// deleteAsset removes the record's local image. A missing file is not an error.
func (p *Poster) deleteAsset(logger *slog.Logger, rec *queue.Record, result *Result) {
	removed, err := DeleteAsset(rec.LocalPath)
	if err != nil {
		logging.WarnWithContext(logger, "asset deletion failed", "asset_delete_failed",
			logging.String("local_path", rec.LocalPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the asset directory"),
			logging.String(logging.FieldImpact, "image stays on disk"),
		)
		return
	}
	if removed {
		result.AssetsDeleted++
		p.hooks.Metrics.RecordAssetDeleted()
		logger.Info("asset deleted", logging.String("local_path", rec.LocalPath))
	}
}

// DeleteAsset removes path and reports whether a file was removed. Deleting
// an already-missing file succeeds.
func DeleteAsset(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *Poster) saveIfUpdated(records []*queue.Record, updated bool) error {
	if !updated {
		return nil
	}
	if err := p.processed.Save(records); err != nil {
		return fmt.Errorf("save processed store: %w", err)
	}
	return nil
}

func (p *Poster) recordAttempt(ctx context.Context, recordID int64, attempt int, outcome journal.Outcome, errText, url string) {
	if p.hooks.Journal == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	channel, _ := services.ChannelFromContext(ctx)
	if err := p.hooks.Journal.RecordAttempt(ctx, journal.Attempt{
		RunID:    runID,
		RecordID: recordID,
		Stage:    stageName,
		Channel:  channel,
		Attempt:  attempt,
		Outcome:  outcome,
		Error:    errText,
		URL:      url,
	}); err != nil {
		p.logger.Debug("journal attempt failed", logging.Error(err))
	}
}

func (p *Poster) attempts() int {
	if p.opts.Attempts < 1 {
		return 1
	}
	return p.opts.Attempts
}

func assetExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
