// Package shopify reads storefront data the pruner needs: product page URLs
// and per-product sales counts from the Admin orders endpoint.
package shopify
