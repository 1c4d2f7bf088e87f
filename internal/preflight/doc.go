// Package preflight provides readiness checks for the credentials, external
// APIs, and filesystem paths memeshop depends on.
//
// These checks run in two contexts:
//   - Pipeline commands call Require before a stage runs so a missing token
//     fails fast instead of producing a queue full of per-record errors.
//   - The CLI "memeshop doctor" command calls RunAll to display readiness,
//     including live probes of the Printify and Shopify APIs.
package preflight
