package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"memeshop/internal/logging"
	"memeshop/internal/queue"
	"memeshop/internal/reddit"
	"memeshop/internal/services"
	"memeshop/internal/textutil"
)

const (
	stageName            = "acquire"
	minCommentLength     = 10
	overfetchFactor      = 3
	descriptionSeparator = "<br><br>"
)

// Source is the content API the acquirer scrapes.
type Source interface {
	Listing(ctx context.Context, subreddit, sort string, limit int) ([]reddit.Post, error)
	TopComments(ctx context.Context, postID string, n int) ([]string, error)
	Download(ctx context.Context, rawURL string, w io.Writer) error
}

// Options configures an Acquirer.
type Options struct {
	Subreddits  []string
	Sort        string
	Limit       int
	TitleSuffix string
	Comments    int
	AssetDir    string
	Channels    []string
}

// Result summarizes one acquisition pass.
type Result struct {
	Recorded int
	Skipped  int
	Failed   int
}

// Acquirer downloads images from the source and appends intake records.
type Acquirer struct {
	source    Source
	intake    *queue.Store
	processed *queue.Store
	opts      Options
	logger    *slog.Logger
	policy    *bluemonday.Policy
}

// New constructs an Acquirer. processed may be nil; when set its ids are
// considered so new records never reuse an id already handed to the publisher.
func New(source Source, intake, processed *queue.Store, opts Options, logger *slog.Logger) *Acquirer {
	return &Acquirer{
		source:    source,
		intake:    intake,
		processed: processed,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, stageName),
		policy:    bluemonday.StrictPolicy(),
	}
}

// Run scrapes the configured subreddits until Limit images are recorded.
// Posts that fail to list or download are logged and skipped; only store
// failures abort the pass.
func (a *Acquirer) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, a.logger)
	var result Result

	if a.opts.Limit <= 0 {
		return result, nil
	}
	if err := os.MkdirAll(a.opts.AssetDir, 0o755); err != nil {
		return result, fmt.Errorf("ensure asset directory: %w", err)
	}
	known, err := a.loadKnown()
	if err != nil {
		return result, err
	}
	nextID := queue.NextID(known)

	for _, sub := range a.opts.Subreddits {
		if result.Recorded >= a.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		posts, err := a.source.Listing(ctx, sub, a.opts.Sort, a.opts.Limit*overfetchFactor)
		if err != nil {
			logging.WarnWithContext(logger, "subreddit listing failed; skipping", "listing_failed",
				logging.String("subreddit", sub),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
				logging.String(logging.FieldImpact, "no images collected from this subreddit this run"),
			)
			continue
		}
		logger.Debug("subreddit listed", logging.String("subreddit", sub), logging.Int("posts", len(posts)))

		for _, post := range posts {
			if result.Recorded >= a.opts.Limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := a.acquirePost(ctx, logger, post, &known, &nextID, &result); err != nil {
				return result, err
			}
		}
	}

	logger.Info("acquisition complete",
		logging.String(logging.FieldEventType, "acquire_complete"),
		logging.Int("recorded", result.Recorded),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (a *Acquirer) acquirePost(ctx context.Context, logger *slog.Logger, post reddit.Post, known *[]*queue.Record, nextID *int64, result *Result) error {
	urls := post.ImageURLs()
	if len(urls) == 0 {
		return nil
	}
	var (
		description string
		described   bool
	)
	for _, imageURL := range urls {
		if result.Recorded >= a.opts.Limit {
			return nil
		}
		fileName := textutil.BaseNameFromURL(imageURL)
		if fileName == "" {
			result.Skipped++
			continue
		}
		if queue.SourceSeen(*known, post.ID, fileName) {
			logger.Debug("image already queued; skipping", logging.String("file", fileName), logging.String("post_id", post.ID))
			result.Skipped++
			continue
		}
		localPath := filepath.Join(a.opts.AssetDir, fileName)
		if _, err := os.Stat(localPath); err == nil {
			logger.Debug("image already downloaded; skipping", logging.String("file", fileName), logging.String("post_id", post.ID))
			result.Skipped++
			continue
		}
		if err := a.download(ctx, imageURL, localPath); err != nil {
			logging.WarnWithContext(logger, "image download failed; skipping", "download_failed",
				logging.String("url", imageURL),
				logging.String("post_id", post.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
				logging.String(logging.FieldImpact, "image not queued this run"),
			)
			result.Failed++
			continue
		}
		if !described {
			description = a.describe(ctx, logger, post.ID)
			described = true
		}

		rec := &queue.Record{
			ID:          *nextID,
			PostID:      post.ID,
			GalleryID:   post.GalleryID(),
			SourceURL:   post.PermalinkURL(),
			LocalPath:   localPath,
			FileName:    fileName,
			Title:       strings.TrimSpace(post.Title) + a.opts.TitleSuffix,
			Description: description,
			Tags:        []string{},
		}
		rec.EnsureChannels(a.opts.Channels)
		if err := a.intake.Append(rec); err != nil {
			return fmt.Errorf("append intake record: %w", err)
		}
		*known = append(*known, rec)
		*nextID++
		result.Recorded++
		logger.Info("image queued",
			logging.String(logging.FieldEventType, "record_queued"),
			logging.Int64(logging.FieldRecordID, rec.ID),
			logging.String("post_id", post.ID),
			logging.String("file", fileName),
		)
	}
	return nil
}

// loadKnown returns every record already in intake or processed. Posted
// records lose their local asset, so the file check alone would requeue them.
func (a *Acquirer) loadKnown() ([]*queue.Record, error) {
	known, err := a.intake.Load()
	if err != nil {
		return nil, fmt.Errorf("load intake: %w", err)
	}
	if a.processed != nil {
		processed, err := a.processed.Load()
		if err != nil {
			return nil, fmt.Errorf("load processed: %w", err)
		}
		known = append(known, processed...)
	}
	return known, nil
}

// download writes to a temporary file first so an interrupted transfer never
// leaves a partial image that later runs would treat as already downloaded.
func (a *Acquirer) download(ctx context.Context, imageURL, localPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	if err := a.source.Download(ctx, imageURL, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("store image: %w", err)
	}
	return nil
}

// describe builds the product description from the post's top comments.
// Any failure yields an empty description rather than dropping the image.
func (a *Acquirer) describe(ctx context.Context, logger *slog.Logger, postID string) string {
	bodies, err := a.source.TopComments(ctx, postID, a.opts.Comments)
	if err != nil {
		logger.Debug("comment fetch failed; using empty description",
			logging.String("post_id", postID),
			logging.Error(err),
		)
		return ""
	}
	return BuildDescription(a.policy, bodies)
}

// BuildDescription keeps comments longer than ten characters, removes quotes,
// flattens newlines, strips any markup, and joins them with <br><br>.
func BuildDescription(policy *bluemonday.Policy, bodies []string) string {
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	parts := make([]string, 0, len(bodies))
	for _, body := range bodies {
		if len(strings.TrimSpace(body)) <= minCommentLength {
			continue
		}
		cleaned := strings.NewReplacer(`"`, "", "'", "", "\r\n", " ", "\n", " ").Replace(body)
		cleaned = strings.TrimSpace(policy.Sanitize(cleaned))
		if cleaned == "" {
			continue
		}
		parts = append(parts, cleaned)
	}
	return strings.Join(parts, descriptionSeparator)
}
