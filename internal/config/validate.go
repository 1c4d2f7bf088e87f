package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
//
// Credentials are not required here; stages that need them report missing
// values through the preflight checks so read-only commands keep working.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateReddit(); err != nil {
		return err
	}
	if err := c.validatePrintify(); err != nil {
		return err
	}
	if err := c.validateShopify(); err != nil {
		return err
	}
	if err := c.validateDistribution(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.IntakeFile == c.Paths.ProcessedFile {
		return errors.New("paths.intake_file and paths.processed_file must differ")
	}
	if strings.TrimSpace(c.Paths.AssetDir) == "" {
		return errors.New("paths.asset_dir must be set")
	}
	return nil
}

func (c *Config) validateReddit() error {
	switch c.Reddit.Sort {
	case "hot", "new", "top", "rising":
	default:
		return fmt.Errorf("reddit.sort must be one of hot, new, top, rising (got %q)", c.Reddit.Sort)
	}
	if c.Reddit.Limit > 100 {
		return errors.New("reddit.limit must be at most 100")
	}
	for _, field := range []struct{ key, value string }{
		{"reddit.auth_url", c.Reddit.AuthURL},
		{"reddit.base_url", c.Reddit.BaseURL},
	} {
		if err := validateURL(field.key, field.value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePrintify() error {
	if err := validateURL("printify.base_url", c.Printify.BaseURL); err != nil {
		return err
	}
	for _, id := range c.Printify.VariantIDs {
		if id <= 0 {
			return fmt.Errorf("printify.variant_ids contains invalid id %d", id)
		}
	}
	return nil
}

func (c *Config) validateShopify() error {
	switch c.Shopify.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("shopify.scheme must be http or https (got %q)", c.Shopify.Scheme)
	}
	if strings.ContainsAny(c.Shopify.Domain, "/ ") {
		return fmt.Errorf("shopify.domain must be a bare host name (got %q)", c.Shopify.Domain)
	}
	return nil
}

func (c *Config) validateDistribution() error {
	seen := make(map[string]struct{}, len(c.Distribution.Channels))
	for _, ch := range c.Distribution.Channels {
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("distribution.channels: channel %q listed more than once", ch)
		}
		seen[ch] = struct{}{}
		known := false
		for _, name := range KnownChannels {
			if ch == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("distribution.channels: unknown channel %q (supported: %s)", ch, strings.Join(KnownChannels, ", "))
		}
	}
	if c.Distribution.Retries > 10 {
		return errors.New("distribution.retries must be at most 10")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.PushgatewayURL == "" {
		return nil
	}
	return validateURL("metrics.pushgateway_url", c.Metrics.PushgatewayURL)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}

func validateURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL (got %q)", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host (got %q)", key, value)
	}
	return nil
}
