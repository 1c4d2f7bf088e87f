// Package textutil provides the small text transforms shared by the pipeline:
// storefront slugs, safe file names for downloaded assets, and length limits
// for social posts.
package textutil
