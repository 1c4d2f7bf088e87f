package testsupport

import (
	"path/filepath"
	"strings"
	"testing"

	"memeshop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every credential is filled with a placeholder and retries do not wait.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.IntakeFile = filepath.Join(base, "reddit_images.jsonl")
	cfgVal.Paths.ProcessedFile = filepath.Join(base, "printify_upload.jsonl")
	cfgVal.Paths.AssetDir = filepath.Join(base, "reddit_photos")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.JournalPath = filepath.Join(base, "journal.db")
	cfgVal.Reddit.ClientID = "reddit-id"
	cfgVal.Reddit.ClientSecret = "reddit-secret"
	cfgVal.Printify.AccessToken = "printify-token"
	cfgVal.Printify.ShopID = "42"
	cfgVal.Shopify.Domain = "shop.example.com"
	cfgVal.Shopify.AccessToken = "shopify-token"
	cfgVal.Twitter.ConsumerKey = "ck"
	cfgVal.Twitter.ConsumerSecret = "cs"
	cfgVal.Twitter.AccessToken = "at"
	cfgVal.Twitter.AccessSecret = "as"
	cfgVal.Bluesky.Handle = "memes.bsky.social"
	cfgVal.Bluesky.AppPassword = "app-password"
	cfgVal.Distribution.BaseDelayMS = 0
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithChannels overrides the configured social channels.
func WithChannels(channels ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Distribution.Channels = channels
	}
}

// WithEndpoints points every external client at the provided base URL.
// Shopify is addressed over plain http so an httptest server can serve it.
func WithEndpoints(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reddit.AuthURL = baseURL + "/api/v1/access_token"
		b.cfg.Reddit.BaseURL = baseURL
		b.cfg.Printify.BaseURL = baseURL + "/v1"
		b.cfg.Twitter.UploadURL = baseURL + "/1.1"
		b.cfg.Twitter.APIURL = baseURL + "/2"
		b.cfg.Bluesky.PDSURL = baseURL
		b.cfg.Shopify.Domain = strings.TrimPrefix(baseURL, "http://")
		b.cfg.Shopify.Scheme = "http"
	}
}

// WithSubreddits restricts acquisition to the given subreddits.
func WithSubreddits(subs ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reddit.Subreddits = subs
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ProcessedFile)
}
