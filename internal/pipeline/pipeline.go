package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"memeshop/internal/acquire"
	"memeshop/internal/commerce/printify"
	"memeshop/internal/config"
	"memeshop/internal/distribute"
	"memeshop/internal/journal"
	"memeshop/internal/logging"
	"memeshop/internal/maintenance"
	"memeshop/internal/metrics"
	"memeshop/internal/notifications"
	"memeshop/internal/preflight"
	"memeshop/internal/publish"
	"memeshop/internal/queue"
	"memeshop/internal/retry"
	"memeshop/internal/services"
)

// Commands accepted by Execute.
const (
	CommandRun     = "run"
	CommandAcquire = preflight.StageAcquire
	CommandPublish = preflight.StagePublish
	CommandPost    = preflight.StagePost
	CommandPrune   = preflight.StagePrune
)

const pushTimeout = 10 * time.Second

// Report describes one finished invocation.
type Report struct {
	RunID    string
	Command  string
	LogPath  string
	Duration time.Duration
	Summary  journal.Summary
	Acquire  acquire.Result
	Publish  publish.Result
	Post     distribute.Result
	Prune    maintenance.Result
}

// ExecuteOptions tunes a single invocation.
type ExecuteOptions struct {
	// DryRun reports prune candidates without deleting them.
	DryRun bool
}

// Runner executes pipeline commands under the store lock and records each
// invocation in the run journal.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	notifier notifications.Service
	sleep    retry.Sleeper
	now      func() time.Time
	newID    func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(r *Runner) {
		if notifier != nil {
			r.notifier = notifier
		}
	}
}

// WithSleeper replaces the backoff timer used between channel retries.
func WithSleeper(sleep retry.Sleeper) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithClock replaces the wall clock used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMetrics replaces the metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = recorder
	}
}

// New constructs a Runner for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		notifier: notifications.NewService(cfg),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the recorder the runner reports to.
func (r *Runner) Metrics() *metrics.Recorder {
	return r.metrics
}

// Stages lists the stages a command runs, in order.
func Stages(command string) ([]string, error) {
	switch command {
	case CommandRun:
		return []string{preflight.StageAcquire, preflight.StagePublish, preflight.StagePost}, nil
	case CommandAcquire, CommandPublish, CommandPost, CommandPrune:
		return []string{command}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

// Execute runs command. Credentials are checked first, then the store lock is
// taken so a concurrent invocation fails fast with queue.ErrLocked. The run is
// journaled, metrics are pushed, and a summary notification is sent whatever
// the outcome.
func (r *Runner) Execute(ctx context.Context, command string, opts ExecuteOptions) (Report, error) {
	report := Report{Command: command}
	stages, err := Stages(command)
	if err != nil {
		return report, err
	}
	if err := preflight.Require(r.cfg, stages...); err != nil {
		return report, err
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return report, err
	}

	lock, err := queue.AcquireLock(queue.LockPath(r.cfg.Paths.ProcessedFile))
	if err != nil {
		return report, err
	}
	defer lock.Release()

	report.RunID = r.newID()
	ctx = services.WithRunID(ctx, report.RunID)

	runLog, err := logging.OpenRunLog(r.logger, r.cfg.Paths.LogDir, report.RunID)
	if err != nil {
		return report, err
	}
	defer runLog.Close()
	report.LogPath = runLog.Path
	logger := logging.NewComponentLogger(runLog.Logger, "pipeline")

	j, err := journal.Open(r.cfg.Paths.JournalPath, journal.WithClock(r.now))
	if err != nil {
		return report, err
	}
	defer j.Close()

	started := r.now()
	if err := j.StartRun(ctx, report.RunID, command); err != nil {
		return report, err
	}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("command", command),
	)

	runErr := r.runStages(ctx, runLog.Logger, j, stages, opts, &report)

	finished := r.now()
	report.Duration = finished.Sub(started)
	// The journal, metrics and notifications still go out after Ctrl-C.
	finishCtx := context.WithoutCancel(ctx)
	if err := j.FinishRun(finishCtx, report.RunID, report.Summary, runErr); err != nil {
		logger.Warn("journal finish failed", logging.Error(err))
	}
	r.report(finishCtx, logger, report, runErr, started, finished)
	r.cleanup(finishCtx, logger, j, runLog.Path, finished)
	return report, runErr
}

func (r *Runner) runStages(ctx context.Context, logger *slog.Logger, j *journal.Journal, stages []string, opts ExecuteOptions, report *Report) error {
	built, err := newClients(r.cfg, stages...)
	if err != nil {
		return err
	}
	intake := queue.NewStore(r.cfg.Paths.IntakeFile)
	processed := queue.NewStore(r.cfg.Paths.ProcessedFile)

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch stage {
		case preflight.StageAcquire:
			acquirer := acquire.New(built.source, intake, processed, acquire.Options{
				Subreddits:  r.cfg.Reddit.Subreddits,
				Sort:        r.cfg.Reddit.Sort,
				Limit:       r.cfg.Reddit.Limit,
				TitleSuffix: r.cfg.Reddit.TitleSuffix,
				Comments:    r.cfg.Reddit.Comments,
				AssetDir:    r.cfg.Paths.AssetDir,
				Channels:    r.cfg.Distribution.Channels,
			}, logger)
			result, err := acquirer.Run(ctx)
			report.Acquire = result
			report.Summary.Acquired = result.Recorded
			r.metrics.RecordAcquired(result.Recorded)
			if err != nil {
				return fmt.Errorf("acquire: %w", err)
			}
		case preflight.StagePublish:
			publisher := publish.New(built.commerce, intake, processed, publish.Options{
				Product: printify.ProductSpec{
					BlueprintID: r.cfg.Printify.BlueprintID,
					ProviderID:  r.cfg.Printify.ProviderID,
					VariantIDs:  r.cfg.Printify.VariantIDs,
					PriceCents:  r.cfg.Printify.PriceCents,
				},
				SalesChannel:     r.cfg.Printify.SalesChannel,
				Blurb:            r.cfg.Printify.Blurb,
				StorefrontDomain: r.cfg.Shopify.Domain,
				Now:              r.now,
			}, publish.Hooks{Journal: j, Metrics: r.metrics, Notifier: r.notifier}, logger)
			result, err := publisher.Run(ctx)
			report.Publish = result
			report.Summary.Published = result.Published
			report.Summary.PublishFailed = result.Failed
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		case preflight.StagePost:
			poster := distribute.New(built.channels, intake, processed, distribute.Options{
				Attempts:  r.cfg.Distribution.Retries,
				BaseDelay: r.cfg.BaseDelay(),
				Sleep:     r.sleep,
			}, distribute.Hooks{Journal: j, Metrics: r.metrics, Notifier: r.notifier}, logger)
			result, err := poster.Run(ctx)
			report.Post = result
			report.Summary.Posted = result.Posted
			report.Summary.Exhausted = result.Exhausted
			if err != nil {
				return fmt.Errorf("post: %w", err)
			}
		case preflight.StagePrune:
			pruner, err := maintenance.New(built.sales, built.commerce, processed, maintenance.Options{
				MinSales:        r.cfg.Maintenance.MinSales,
				MaxAgeDays:      r.cfg.Maintenance.MaxAgeDays,
				SalesWindowDays: r.cfg.Maintenance.SalesWindowDays,
				CacheSize:       r.cfg.Maintenance.CacheSize,
				DryRun:          opts.DryRun,
				Now:             r.now,
			}, maintenance.Hooks{Journal: j, Metrics: r.metrics, Notifier: r.notifier}, logger)
			if err != nil {
				return err
			}
			result, err := pruner.Run(ctx)
			report.Prune = result
			if !opts.DryRun {
				report.Summary.Pruned = result.Pruned
			}
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
		}
	}
	return nil
}

func (r *Runner) report(ctx context.Context, logger *slog.Logger, report Report, runErr error, started, finished time.Time) {
	r.metrics.ObserveRun(report.Command, started, finished, runErr == nil)

	if runErr != nil {
		attrs := []logging.Attr{
			logging.String("command", report.Command),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, services.ErrorHint(runErr)),
		}
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("run canceled", logging.Args(attrs...)...)
		} else {
			logging.ErrorWithContext(logger, "run failed", "run_failed", attrs...)
			r.notify(ctx, logger, notifications.EventError, notifications.Payload{
				"context": report.Command,
				"error":   runErr,
			})
		}
	} else {
		logger.Info("run complete",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("command", report.Command),
			logging.Duration("duration", report.Duration),
			logging.Int("acquired", report.Summary.Acquired),
			logging.Int("published", report.Summary.Published),
			logging.Int("publish_failed", report.Summary.PublishFailed),
			logging.Int("posted", report.Summary.Posted),
			logging.Int("exhausted", report.Summary.Exhausted),
			logging.Int("pruned", report.Summary.Pruned),
		)
		if report.Command != CommandPrune {
			r.notify(ctx, logger, notifications.EventRunCompleted, notifications.Payload{
				"published":     report.Summary.Published,
				"posted":        report.Summary.Posted,
				"exhausted":     report.Summary.Exhausted,
				"publishFailed": report.Summary.PublishFailed,
				"duration":      report.Duration,
			})
		}
	}

	if r.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	instance, _ := os.Hostname()
	if err := r.metrics.Push(pushCtx, r.cfg.Metrics.PushgatewayURL, r.cfg.Metrics.Job, instance); err != nil {
		logging.WarnWithContext(logger, "metrics push failed", "metrics_push_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.pushgateway_url"),
			logging.String(logging.FieldImpact, "dashboards miss this run"),
		)
	}
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

// cleanup removes run logs and journal rows older than the retention window.
func (r *Runner) cleanup(ctx context.Context, logger *slog.Logger, j *journal.Journal, currentLog string, now time.Time) {
	days := r.cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -days)
	if pruned := logging.PruneRunLogs(logger, r.cfg.Paths.LogDir, cutoff, currentLog); pruned > 0 {
		logger.Info("run logs pruned", logging.Int("removed", pruned))
	}
	removed, err := j.PruneRuns(ctx, cutoff)
	if err != nil {
		logger.Warn("journal retention failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("journal runs pruned", logging.Int64("removed", removed))
	}
}
