// Package twitter posts record images to X/Twitter with OAuth 1.0a
// user-context signing.
package twitter
