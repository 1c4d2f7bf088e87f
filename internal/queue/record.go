package queue

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is one content item moving through the pipeline. Optional fields are
// pointers so an unset value is written as an explicit null.
type Record struct {
	ID            int64              `json:"id"`
	PostID        string             `json:"post_id"`
	GalleryID     string             `json:"gallery_id"`
	SourceURL     string             `json:"source_url"`
	LocalPath     string             `json:"local_path"`
	FileName      string             `json:"file_name"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Tags          []string           `json:"tags"`
	ListingID     *string            `json:"listing_id"`
	StorefrontID  *string            `json:"storefront_id"`
	StorefrontURL *string            `json:"storefront_url"`
	RetailPrice   *float64           `json:"retail_price"`
	CreatedAt     *string            `json:"created_at"`
	ChannelURLs   map[string]*string `json:"channel_urls"`
	PrunedAt      *string            `json:"pruned_at"`
	LastError     *string            `json:"last_error"`
}

// MarshalJSON writes tags and channel_urls as empty collections rather than
// null and leaves HTML in descriptions unescaped.
func (r Record) MarshalJSON() ([]byte, error) {
	type wire Record
	w := wire(r)
	if w.Tags == nil {
		w.Tags = []string{}
	}
	if w.ChannelURLs == nil {
		w.ChannelURLs = map[string]*string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Key identifies a record across the intake and processed stores.
type Key struct {
	ID     int64
	PostID string
}

// Key returns the merge identity of the record.
func (r *Record) Key() Key {
	return Key{ID: r.ID, PostID: r.PostID}
}

// IsListed reports whether the publisher has created a listing for the record.
func (r *Record) IsListed() bool {
	return r != nil && r.ListingID != nil
}

// IsPruned reports whether the listing pruner removed the record's listing.
func (r *Record) IsPruned() bool {
	return r != nil && r.PrunedAt != nil
}

// EnsureChannels adds a nil entry for each configured channel missing from
// ChannelURLs. Existing entries are left alone.
func (r *Record) EnsureChannels(channels []string) {
	if r.ChannelURLs == nil {
		r.ChannelURLs = make(map[string]*string, len(channels))
	}
	for _, ch := range channels {
		if _, ok := r.ChannelURLs[ch]; !ok {
			r.ChannelURLs[ch] = nil
		}
	}
}

// ChannelURL returns the posted URL for channel, or "" when not yet posted.
func (r *Record) ChannelURL(channel string) string {
	if r.ChannelURLs == nil {
		return ""
	}
	if url := r.ChannelURLs[channel]; url != nil {
		return *url
	}
	return ""
}

// HasChannelURL reports whether channel already carries a URL.
func (r *Record) HasChannelURL(channel string) bool {
	return r.ChannelURL(channel) != ""
}

// SetChannelURL records url for channel unless one is already present.
// It reports whether the record changed.
func (r *Record) SetChannelURL(channel, url string) bool {
	url = strings.TrimSpace(url)
	if url == "" || r.HasChannelURL(channel) {
		return false
	}
	if r.ChannelURLs == nil {
		r.ChannelURLs = make(map[string]*string)
	}
	r.ChannelURLs[channel] = &url
	return true
}

// PendingChannels returns the configured channels that still lack a URL, in
// configuration order.
func (r *Record) PendingChannels(channels []string) []string {
	pending := make([]string, 0, len(channels))
	for _, ch := range channels {
		if !r.HasChannelURL(ch) {
			pending = append(pending, ch)
		}
	}
	return pending
}

// AllPosted reports whether every configured channel has a URL.
func (r *Record) AllPosted(channels []string) bool {
	return len(r.PendingChannels(channels)) == 0
}

// SetError records a diagnostic message; nil clears it.
func (r *Record) SetError(err error) {
	if err == nil {
		r.LastError = nil
		return
	}
	msg := err.Error()
	r.LastError = &msg
}

// Stage reports the furthest lifecycle state the record has reached.
func (r *Record) Stage(channels []string) string {
	switch {
	case r.IsPruned():
		return "pruned"
	case !r.IsListed():
		return "scraped"
	case r.AllPosted(channels):
		return "posted"
	default:
		return "published"
	}
}

// StringPtr returns a pointer to a copy of value.
func StringPtr(value string) *string {
	return &value
}

// Float64Ptr returns a pointer to a copy of value.
func Float64Ptr(value float64) *float64 {
	return &value
}
