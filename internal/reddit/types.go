package reddit

import (
	"encoding/json"
	"html"
	"strings"
)

// Post is the subset of a Reddit link listing the acquirer consumes.
type Post struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Title         string           `json:"title"`
	Permalink     string           `json:"permalink"`
	URL           string           `json:"url"`
	Subreddit     string           `json:"subreddit"`
	Over18        bool             `json:"over_18"`
	IsGallery     bool             `json:"is_gallery"`
	GalleryData   *GalleryData     `json:"gallery_data"`
	MediaMetadata map[string]Media `json:"media_metadata"`
}

// GalleryData lists gallery items in display order.
type GalleryData struct {
	Items []GalleryItem `json:"items"`
}

// GalleryItem references an entry in Post.MediaMetadata.
type GalleryItem struct {
	MediaID string `json:"media_id"`
}

// Media describes one gallery image.
type Media struct {
	Status string      `json:"status"`
	Mime   string      `json:"m"`
	Source MediaSource `json:"s"`
}

// MediaSource holds the full-size rendition of a gallery image.
type MediaSource struct {
	URL string `json:"u"`
}

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// ImageURLs returns the downloadable still images for the post. Gallery
// entries keep their display order and skip animated gifs; other posts
// qualify only when the link itself is a jpg or png.
func (p Post) ImageURLs() []string {
	if p.IsGallery {
		if p.GalleryData == nil {
			return nil
		}
		urls := make([]string, 0, len(p.GalleryData.Items))
		for _, item := range p.GalleryData.Items {
			media, ok := p.MediaMetadata[item.MediaID]
			if !ok {
				continue
			}
			if mediaSubtype(media.Mime) == "gif" {
				continue
			}
			if u := cleanMediaURL(media.Source.URL); u != "" {
				urls = append(urls, u)
			}
		}
		return urls
	}
	lower := strings.ToLower(p.URL)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return []string{p.URL}
		}
	}
	return nil
}

// GalleryID returns the post id for galleries and "" otherwise.
func (p Post) GalleryID() string {
	if p.IsGallery {
		return p.ID
	}
	return ""
}

// PermalinkURL returns the absolute URL of the post's comment page.
func (p Post) PermalinkURL() string {
	if p.Permalink == "" {
		return ""
	}
	if strings.HasPrefix(p.Permalink, "http") {
		return p.Permalink
	}
	return "https://www.reddit.com" + p.Permalink
}

func mediaSubtype(mime string) string {
	if idx := strings.LastIndex(mime, "/"); idx >= 0 {
		return strings.ToLower(mime[idx+1:])
	}
	return strings.ToLower(mime)
}

func cleanMediaURL(raw string) string {
	raw = html.UnescapeString(strings.TrimSpace(raw))
	if idx := strings.Index(raw, "?"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

type listingEnvelope struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string         `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type comment struct {
	Body string `json:"body"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
