package preflight

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"memeshop/internal/config"
	"memeshop/internal/services"
)

// Stage names accepted by Require.
const (
	StageAcquire = "acquire"
	StagePublish = "publish"
	StagePost    = "post"
	StagePrune   = "prune"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Credentials returns the credential presence checks a stage depends on.
func Credentials(cfg *config.Config, stage string) []Result {
	if cfg == nil {
		return nil
	}
	switch stage {
	case StageAcquire:
		return []Result{CheckCredentials("Reddit",
			Field{"reddit.client_id", cfg.Reddit.ClientID},
			Field{"reddit.client_secret", cfg.Reddit.ClientSecret},
		)}
	case StagePublish:
		return []Result{printifyCredentials(cfg)}
	case StagePost:
		var results []Result
		if cfg.HasChannel("twitter") {
			results = append(results, CheckCredentials("Twitter",
				Field{"twitter.consumer_key", cfg.Twitter.ConsumerKey},
				Field{"twitter.consumer_secret", cfg.Twitter.ConsumerSecret},
				Field{"twitter.access_token", cfg.Twitter.AccessToken},
				Field{"twitter.access_secret", cfg.Twitter.AccessSecret},
			))
		}
		if cfg.HasChannel("bluesky") {
			results = append(results, CheckCredentials("Bluesky",
				Field{"bluesky.handle", cfg.Bluesky.Handle},
				Field{"bluesky.app_password", cfg.Bluesky.AppPassword},
			))
		}
		return results
	case StagePrune:
		return []Result{printifyCredentials(cfg), shopifyCredentials(cfg)}
	default:
		return nil
	}
}

// Require fails with a configuration error when any credential needed by the
// listed stages is missing.
func Require(cfg *config.Config, stages ...string) error {
	var failures []string
	for _, stage := range stages {
		for _, result := range Credentials(cfg, stage) {
			if !result.Passed {
				failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
			}
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "credentials", strings.Join(failures, "; "), nil)
}

// RunAll executes every check for the given config: writable directories,
// credentials for each stage, and a reachability probe for each commerce API
// whose credentials are present.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Asset directory", cfg.Paths.AssetDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Queue directory", filepath.Dir(cfg.Paths.ProcessedFile)),
	}
	for _, stage := range []string{StageAcquire, StagePublish, StagePost} {
		results = append(results, Credentials(cfg, stage)...)
	}
	results = append(results, shopifyCredentials(cfg))

	if printifyCredentials(cfg).Passed {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+cfg.Printify.AccessToken)
		url := fmt.Sprintf("%s/shops/%s/products.json?limit=1", cfg.Printify.BaseURL, cfg.Printify.ShopID)
		results = append(results, CheckEndpoint(ctx, "Printify API", url, header))
	}
	if shopifyCredentials(cfg).Passed {
		header := http.Header{}
		header.Set("X-Shopify-Access-Token", cfg.Shopify.AccessToken)
		url := fmt.Sprintf("%s://%s/admin/api/%s/shop.json", cfg.Shopify.Scheme, cfg.Shopify.Domain, cfg.Shopify.APIVersion)
		results = append(results, CheckEndpoint(ctx, "Shopify API", url, header))
	}
	return results
}

func printifyCredentials(cfg *config.Config) Result {
	return CheckCredentials("Printify",
		Field{"printify.access_token", cfg.Printify.AccessToken},
		Field{"printify.shop_id", cfg.Printify.ShopID},
	)
}

func shopifyCredentials(cfg *config.Config) Result {
	return CheckCredentials("Shopify",
		Field{"shopify.domain", cfg.Shopify.Domain},
		Field{"shopify.access_token", cfg.Shopify.AccessToken},
	)
}
