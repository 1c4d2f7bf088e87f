// Package logs locates and tails the per-run log files written under
// paths.log_dir.
//
// Tail keeps memory bounded by holding only the requested number of trailing
// lines. Follow polls the file from an offset until the context ends, which is
// how `memeshop logs --follow` watches a run that is still in progress.
package logs
