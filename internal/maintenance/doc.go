// Package maintenance removes listings that did not sell.
//
// The pruner runs on its own schedule (`memeshop prune`) and never races the
// main pipeline because both hold the processed store lock. Pruned records
// stay in the store with pruned_at set so their history and social URLs are
// kept; the poster skips them.
package maintenance
