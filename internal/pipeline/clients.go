package pipeline

import (
	"net/http"

	"memeshop/internal/acquire"
	"memeshop/internal/commerce/printify"
	"memeshop/internal/commerce/shopify"
	"memeshop/internal/config"
	"memeshop/internal/distribute"
	"memeshop/internal/preflight"
	"memeshop/internal/reddit"
	"memeshop/internal/services"
	"memeshop/internal/social/bluesky"
	"memeshop/internal/social/twitter"
)

// clients holds the external API clients the requested stages need. Clients
// for stages that are not run stay nil.
type clients struct {
	source   acquire.Source
	commerce *printify.Client
	sales    *shopify.Client
	channels []distribute.Channel
}

func newClients(cfg *config.Config, stages ...string) (clients, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	var out clients
	for _, stage := range stages {
		switch stage {
		case preflight.StageAcquire:
			source, err := reddit.NewClient(reddit.Options{
				ClientID:     cfg.Reddit.ClientID,
				ClientSecret: cfg.Reddit.ClientSecret,
				UserAgent:    cfg.Reddit.UserAgent,
				AuthURL:      cfg.Reddit.AuthURL,
				BaseURL:      cfg.Reddit.BaseURL,
				HTTPClient:   httpClient,
			})
			if err != nil {
				return out, err
			}
			out.source = source
		case preflight.StagePublish, preflight.StagePrune:
			if out.commerce == nil {
				commerce, err := printify.NewClient(printify.Options{
					BaseURL:     cfg.Printify.BaseURL,
					AccessToken: cfg.Printify.AccessToken,
					ShopID:      cfg.Printify.ShopID,
					HTTPClient:  httpClient,
				})
				if err != nil {
					return out, err
				}
				out.commerce = commerce
			}
			if stage != preflight.StagePrune {
				continue
			}
			sales, err := shopify.NewClient(shopify.Options{
				Domain:      cfg.Shopify.Domain,
				AccessToken: cfg.Shopify.AccessToken,
				APIVersion:  cfg.Shopify.APIVersion,
				Scheme:      cfg.Shopify.Scheme,
				HTTPClient:  httpClient,
			})
			if err != nil {
				return out, err
			}
			out.sales = sales
		case preflight.StagePost:
			channels, err := newChannels(cfg, httpClient)
			if err != nil {
				return out, err
			}
			out.channels = channels
		}
	}
	return out, nil
}

// newChannels builds one poster per configured channel, in configured order.
func newChannels(cfg *config.Config, httpClient *http.Client) ([]distribute.Channel, error) {
	channels := make([]distribute.Channel, 0, len(cfg.Distribution.Channels))
	for _, name := range cfg.Distribution.Channels {
		switch name {
		case twitter.Name:
			client, err := twitter.NewClient(twitter.Options{
				ConsumerKey:    cfg.Twitter.ConsumerKey,
				ConsumerSecret: cfg.Twitter.ConsumerSecret,
				AccessToken:    cfg.Twitter.AccessToken,
				AccessSecret:   cfg.Twitter.AccessSecret,
				UploadURL:      cfg.Twitter.UploadURL,
				APIURL:         cfg.Twitter.APIURL,
				HTTPClient:     httpClient,
			})
			if err != nil {
				return nil, err
			}
			channels = append(channels, client)
		case bluesky.Name:
			client, err := bluesky.NewClient(bluesky.Options{
				Handle:      cfg.Bluesky.Handle,
				AppPassword: cfg.Bluesky.AppPassword,
				PDSURL:      cfg.Bluesky.PDSURL,
				HTTPClient:  httpClient,
			})
			if err != nil {
				return nil, err
			}
			channels = append(channels, client)
		default:
			return nil, services.Wrap(services.ErrConfiguration, "post", "channels", "unknown channel "+name, nil)
		}
	}
	return channels, nil
}
