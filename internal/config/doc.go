// Package config loads, normalizes, and validates memeshop configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides for every
// credential (REDDIT_CLIENT_ID, PRINTIFY_ACCESS_TOKEN, TW_OAUTH_KEY and
// friends). The Config type centralizes every knob the pipeline stages and
// the CLI need.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical channel names, and clear validation errors.
package config
