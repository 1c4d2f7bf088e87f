// Package printify wraps the Printify REST endpoints used to turn a meme image
// into a published print-on-demand product: image upload, product creation,
// publishing, lookup, and deletion.
package printify
