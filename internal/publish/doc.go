// Package publish lists scraped records on the commerce platform.
//
// For each record without a listing the publisher uploads the image, creates
// a product, publishes it to the storefront, and resolves the public URL.
// Records that already carry a listing_id are never touched, so re-running
// the publisher makes no API calls and rewrites the processed store
// unchanged.
package publish
