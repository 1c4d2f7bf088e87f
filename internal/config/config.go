package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the queue file, asset, and log locations.
type Paths struct {
	IntakeFile    string `toml:"intake_file"`
	ProcessedFile string `toml:"processed_file"`
	AssetDir      string `toml:"asset_dir"`
	LogDir        string `toml:"log_dir"`
	JournalPath   string `toml:"journal_path"`
}

// Reddit contains configuration for the content source.
type Reddit struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	UserAgent    string   `toml:"user_agent"`
	AuthURL      string   `toml:"auth_url"`
	BaseURL      string   `toml:"base_url"`
	Subreddits   []string `toml:"subreddits"`
	Sort         string   `toml:"sort"`
	Limit        int      `toml:"limit"`
	TitleSuffix  string   `toml:"title_suffix"`
	Comments     int      `toml:"comments"`
}

// Printify contains configuration for the commerce API.
type Printify struct {
	AccessToken  string  `toml:"access_token"`
	ShopID       string  `toml:"shop_id"`
	BaseURL      string  `toml:"base_url"`
	BlueprintID  int     `toml:"blueprint_id"`
	ProviderID   int     `toml:"provider_id"`
	VariantIDs   []int64 `toml:"variant_ids"`
	PriceCents   int     `toml:"price_cents"`
	SalesChannel string  `toml:"sales_channel"`
	Blurb        string  `toml:"blurb"`
}

// Shopify contains configuration for the storefront.
type Shopify struct {
	Domain      string `toml:"domain"`
	AccessToken string `toml:"access_token"`
	APIVersion  string `toml:"api_version"`
	Scheme      string `toml:"scheme"`
}

// Twitter contains OAuth 1.0a user-context credentials.
type Twitter struct {
	ConsumerKey    string `toml:"consumer_key"`
	ConsumerSecret string `toml:"consumer_secret"`
	AccessToken    string `toml:"access_token"`
	AccessSecret   string `toml:"access_secret"`
	UploadURL      string `toml:"upload_url"`
	APIURL         string `toml:"api_url"`
}

// Bluesky contains app-password credentials.
type Bluesky struct {
	Handle      string `toml:"handle"`
	AppPassword string `toml:"app_password"`
	PDSURL      string `toml:"pds_url"`
}

// Distribution controls the social posting stage.
type Distribution struct {
	Channels       []string `toml:"channels"`
	Retries        int      `toml:"retries"`
	BaseDelayMS    int      `toml:"base_delay_ms"`
	RequestTimeout int      `toml:"request_timeout"`
}

// Maintenance controls the listing pruner.
type Maintenance struct {
	MinSales        int `toml:"min_sales"`
	MaxAgeDays      int `toml:"max_age_days"`
	SalesWindowDays int `toml:"sales_window_days"`
	CacheSize       int `toml:"cache_size"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunSummary     bool   `toml:"run_summary"`
	Exhausted      bool   `toml:"exhausted"`
	Errors         bool   `toml:"errors"`
}

// Metrics contains Prometheus Pushgateway settings.
type Metrics struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for memeshop.
//
// Configuration sections by subsystem:
//   - Paths: queue files, downloaded assets, logs, run journal
//   - Reddit: content source credentials and scrape scope
//   - Printify: product creation and publishing
//   - Shopify: storefront domain and sales lookups
//   - Twitter, Bluesky: social channel credentials
//   - Distribution: channel list and retry policy
//   - Maintenance: listing pruner thresholds
//   - Notifications: ntfy push notification settings
//   - Metrics: Pushgateway export
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Reddit        Reddit        `toml:"reddit"`
	Printify      Printify      `toml:"printify"`
	Shopify       Shopify       `toml:"shopify"`
	Twitter       Twitter       `toml:"twitter"`
	Bluesky       Bluesky       `toml:"bluesky"`
	Distribution  Distribution  `toml:"distribution"`
	Maintenance   Maintenance   `toml:"maintenance"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("memeshop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.AssetDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.IntakeFile),
		filepath.Dir(c.Paths.ProcessedFile),
		filepath.Dir(c.Paths.JournalPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BaseDelay returns the distribution backoff base as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Distribution.BaseDelayMS) * time.Millisecond
}

// RequestTimeout returns the HTTP timeout applied to external API clients.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Distribution.RequestTimeout) * time.Second
}

// HasChannel reports whether the named social channel is configured.
func (c *Config) HasChannel(name string) bool {
	for _, ch := range c.Distribution.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
