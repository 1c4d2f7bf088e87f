// Package main hosts the memeshop CLI entrypoint and command graph.
//
// Pipeline commands (run, acquire, publish, post, prune) hand off to
// internal/pipeline, which owns locking, journaling and notifications.
// Inspection commands (queue, runs, doctor, config) read the stores and the
// run journal directly and render tables for the terminal. Keep this package
// lean: new behaviour belongs in the internal packages first.
package main
