// Package acquire scrapes images from configured subreddits into the asset
// directory and appends one intake record per image.
//
// Galleries contribute every still image; single posts qualify when they link
// a jpg or png directly. An image whose file already exists is skipped, which
// keeps repeated runs from queueing the same meme twice.
package acquire
