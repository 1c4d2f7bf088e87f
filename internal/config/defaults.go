package config

const (
	defaultConfigPath         = "~/.config/memeshop/config.toml"
	defaultIntakeFile         = "~/.local/share/memeshop/reddit_images.jsonl"
	defaultProcessedFile      = "~/.local/share/memeshop/printify_upload.jsonl"
	defaultAssetDir           = "~/.local/share/memeshop/reddit_photos"
	defaultLogDir             = "~/.local/share/memeshop/logs"
	defaultJournalPath        = "~/.local/share/memeshop/journal.db"
	defaultRedditAuthURL      = "https://www.reddit.com/api/v1/access_token"
	defaultRedditBaseURL      = "https://oauth.reddit.com"
	defaultRedditUserAgent    = "memeshop/0.1 (by /u/memeshop)"
	defaultRedditSort         = "hot"
	defaultRedditLimit        = 15
	defaultRedditComments     = 3
	defaultTitleSuffix        = " - meme on a T-shirt"
	defaultPrintifyBaseURL    = "https://api.printify.com/v1"
	defaultBlueprintID        = 5
	defaultProviderID         = 99
	defaultVariantID          = 17643
	defaultPriceCents         = 1999
	defaultSalesChannel       = "shopify"
	defaultShopifyAPIVersion  = "2023-10"
	defaultShopifyScheme      = "https"
	defaultTwitterUploadURL   = "https://upload.twitter.com/1.1"
	defaultTwitterAPIURL      = "https://api.twitter.com/2"
	defaultBlueskyPDSURL      = "https://bsky.social"
	defaultRetries            = 3
	defaultBaseDelayMS        = 2000
	defaultRequestTimeout     = 30
	defaultMinSales           = 3
	defaultMaxAgeDays         = 20
	defaultSalesWindowDays    = 60
	defaultSalesCacheSize     = 512
	defaultNotifyTimeout      = 10
	defaultMetricsJob         = "memeshop"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	channelTwitter            = "twitter"
	channelBluesky            = "bluesky"
	defaultProductDescription = "Printed on demand by Printify. Ships from the US or UK depending on location.\n\n" +
		"This shirt is made from responsibly sourced materials and printed using sustainable practices. " +
		"To care for your shirt, machine wash cold inside-out with like colors and tumble dry low. " +
		"Do not iron directly on the print.\n"
)

var defaultSubreddits = []string{
	"dankmemes",
	"HistoryMemes",
	"PoliticalMemes",
	"TrumpMemes",
	"Memes_Of_The_Dank",
	"PoliticalCompassMemes",
}

// KnownChannels lists the social channels the poster can be configured with.
var KnownChannels = []string{channelTwitter, channelBluesky}

// Default returns a Config populated with repository defaults.
func Default() Config {
	subs := make([]string, len(defaultSubreddits))
	copy(subs, defaultSubreddits)
	return Config{
		Paths: Paths{
			IntakeFile:    defaultIntakeFile,
			ProcessedFile: defaultProcessedFile,
			AssetDir:      defaultAssetDir,
			LogDir:        defaultLogDir,
			JournalPath:   defaultJournalPath,
		},
		Reddit: Reddit{
			UserAgent:   defaultRedditUserAgent,
			AuthURL:     defaultRedditAuthURL,
			BaseURL:     defaultRedditBaseURL,
			Subreddits:  subs,
			Sort:        defaultRedditSort,
			Limit:       defaultRedditLimit,
			TitleSuffix: defaultTitleSuffix,
			Comments:    defaultRedditComments,
		},
		Printify: Printify{
			BaseURL:      defaultPrintifyBaseURL,
			BlueprintID:  defaultBlueprintID,
			ProviderID:   defaultProviderID,
			VariantIDs:   []int64{defaultVariantID},
			PriceCents:   defaultPriceCents,
			SalesChannel: defaultSalesChannel,
			Blurb:        defaultProductDescription,
		},
		Shopify: Shopify{
			APIVersion: defaultShopifyAPIVersion,
			Scheme:     defaultShopifyScheme,
		},
		Twitter: Twitter{
			UploadURL: defaultTwitterUploadURL,
			APIURL:    defaultTwitterAPIURL,
		},
		Bluesky: Bluesky{
			PDSURL: defaultBlueskyPDSURL,
		},
		Distribution: Distribution{
			Channels:       []string{channelTwitter, channelBluesky},
			Retries:        defaultRetries,
			BaseDelayMS:    defaultBaseDelayMS,
			RequestTimeout: defaultRequestTimeout,
		},
		Maintenance: Maintenance{
			MinSales:        defaultMinSales,
			MaxAgeDays:      defaultMaxAgeDays,
			SalesWindowDays: defaultSalesWindowDays,
			CacheSize:       defaultSalesCacheSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunSummary:     true,
			Exhausted:      true,
			Errors:         true,
		},
		Metrics: Metrics{
			Job: defaultMetricsJob,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
