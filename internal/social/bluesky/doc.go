// Package bluesky posts record images to Bluesky using an app password.
//
// A session is created lazily and reused until shortly before the access
// token's exp claim; a 401 drops it so the next attempt logs in again.
package bluesky
