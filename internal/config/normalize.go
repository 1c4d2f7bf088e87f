package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReddit()
	c.normalizePrintify()
	c.normalizeShopify()
	c.normalizeSocial()
	c.normalizeDistribution()
	c.normalizeMaintenance()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.intake_file", &c.Paths.IntakeFile, defaultIntakeFile},
		{"paths.processed_file", &c.Paths.ProcessedFile, defaultProcessedFile},
		{"paths.asset_dir", &c.Paths.AssetDir, defaultAssetDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.journal_path", &c.Paths.JournalPath, defaultJournalPath},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeReddit() {
	envOverride(&c.Reddit.ClientID, "REDDIT_CLIENT_ID")
	envOverride(&c.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	envFallback(&c.Reddit.UserAgent, "REDDIT_USER_AGENT")
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = defaultRedditUserAgent
	}
	c.Reddit.AuthURL = trimURL(c.Reddit.AuthURL, defaultRedditAuthURL)
	c.Reddit.BaseURL = trimURL(c.Reddit.BaseURL, defaultRedditBaseURL)
	c.Reddit.Sort = strings.ToLower(strings.TrimSpace(c.Reddit.Sort))
	if c.Reddit.Sort == "" {
		c.Reddit.Sort = defaultRedditSort
	}
	subs := make([]string, 0, len(c.Reddit.Subreddits))
	seen := make(map[string]struct{}, len(c.Reddit.Subreddits))
	for _, sub := range c.Reddit.Subreddits {
		sub = strings.TrimPrefix(strings.TrimSpace(sub), "r/")
		if sub == "" {
			continue
		}
		key := strings.ToLower(sub)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		subs = append(subs, sub)
	}
	c.Reddit.Subreddits = subs
	if c.Reddit.Limit <= 0 {
		c.Reddit.Limit = defaultRedditLimit
	}
	if c.Reddit.Comments < 0 {
		c.Reddit.Comments = 0
	}
}

func (c *Config) normalizePrintify() {
	envOverride(&c.Printify.AccessToken, "PRINTIFY_ACCESS_TOKEN")
	envFallback(&c.Printify.AccessToken, "ACCESS_TOKEN")
	envOverride(&c.Printify.ShopID, "PRINTIFY_SHOP_ID")
	envFallback(&c.Printify.ShopID, "SHOPIFY_ID")
	c.Printify.BaseURL = trimURL(c.Printify.BaseURL, defaultPrintifyBaseURL)
	if c.Printify.BlueprintID <= 0 {
		c.Printify.BlueprintID = defaultBlueprintID
	}
	if c.Printify.ProviderID <= 0 {
		c.Printify.ProviderID = defaultProviderID
	}
	if len(c.Printify.VariantIDs) == 0 {
		c.Printify.VariantIDs = []int64{defaultVariantID}
	}
	if c.Printify.PriceCents <= 0 {
		c.Printify.PriceCents = defaultPriceCents
	}
	c.Printify.SalesChannel = strings.TrimSpace(c.Printify.SalesChannel)
	if c.Printify.SalesChannel == "" {
		c.Printify.SalesChannel = defaultSalesChannel
	}
}

func (c *Config) normalizeShopify() {
	envOverride(&c.Shopify.AccessToken, "SHOPIFY_ACCESS_TOKEN")
	envFallback(&c.Shopify.AccessToken, "shopify_access_token")
	envFallback(&c.Shopify.Domain, "SHOPIFY_DOMAIN")
	domain := strings.TrimSpace(c.Shopify.Domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	c.Shopify.Domain = strings.TrimRight(domain, "/")
	c.Shopify.APIVersion = strings.TrimSpace(c.Shopify.APIVersion)
	if c.Shopify.APIVersion == "" {
		c.Shopify.APIVersion = defaultShopifyAPIVersion
	}
	c.Shopify.Scheme = strings.ToLower(strings.TrimSpace(c.Shopify.Scheme))
	if c.Shopify.Scheme == "" {
		c.Shopify.Scheme = defaultShopifyScheme
	}
}

func (c *Config) normalizeSocial() {
	envOverride(&c.Twitter.ConsumerKey, "TW_OAUTH_KEY")
	envOverride(&c.Twitter.ConsumerSecret, "TW_OAUTH_SECRET")
	envOverride(&c.Twitter.AccessToken, "TW_ACCESS_TOKEN")
	envOverride(&c.Twitter.AccessSecret, "TW_ACCESS_SECRET")
	c.Twitter.UploadURL = trimURL(c.Twitter.UploadURL, defaultTwitterUploadURL)
	c.Twitter.APIURL = trimURL(c.Twitter.APIURL, defaultTwitterAPIURL)

	envFallback(&c.Bluesky.Handle, "BLUESKY_HANDLE")
	envOverride(&c.Bluesky.AppPassword, "BLUESKY_APP_PASSWORD")
	c.Bluesky.Handle = strings.TrimPrefix(strings.TrimSpace(c.Bluesky.Handle), "@")
	c.Bluesky.PDSURL = trimURL(c.Bluesky.PDSURL, defaultBlueskyPDSURL)
}

func (c *Config) normalizeDistribution() {
	channels := make([]string, 0, len(c.Distribution.Channels))
	seen := make(map[string]struct{}, len(c.Distribution.Channels))
	for _, ch := range c.Distribution.Channels {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if ch == "" {
			continue
		}
		if _, exists := seen[ch]; exists {
			continue
		}
		seen[ch] = struct{}{}
		channels = append(channels, ch)
	}
	c.Distribution.Channels = channels
	if c.Distribution.Retries <= 0 {
		c.Distribution.Retries = defaultRetries
	}
	if c.Distribution.BaseDelayMS < 0 {
		c.Distribution.BaseDelayMS = defaultBaseDelayMS
	}
	if c.Distribution.RequestTimeout <= 0 {
		c.Distribution.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeMaintenance() {
	if c.Maintenance.MinSales < 0 {
		c.Maintenance.MinSales = 0
	}
	if c.Maintenance.MaxAgeDays <= 0 {
		c.Maintenance.MaxAgeDays = defaultMaxAgeDays
	}
	if c.Maintenance.SalesWindowDays <= 0 {
		c.Maintenance.SalesWindowDays = defaultSalesWindowDays
	}
	if c.Maintenance.CacheSize <= 0 {
		c.Maintenance.CacheSize = defaultSalesCacheSize
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	envFallback(&c.Notifications.NtfyTopic, "NTFY_TOPIC")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.Metrics.PushgatewayURL = strings.TrimRight(strings.TrimSpace(c.Metrics.PushgatewayURL), "/")
	c.Metrics.Job = strings.TrimSpace(c.Metrics.Job)
	if c.Metrics.Job == "" {
		c.Metrics.Job = defaultMetricsJob
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// envOverride replaces the target with the environment value when it is set.
// Secrets follow this rule so deployments can keep them out of the config file.
func envOverride(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
		return
	}
	*target = strings.TrimSpace(*target)
}

// envFallback fills the target from the environment only when it is empty.
func envFallback(target *string, key string) {
	*target = strings.TrimSpace(*target)
	if *target != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}

func trimURL(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}
