package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"memeshop/internal/services"
)

// tokenSkew renews the access token this long before Reddit expires it.
const tokenSkew = time.Minute

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	AuthURL      string
	BaseURL      string
	HTTPClient   *http.Client
}

// Client talks to the Reddit API with an application-only OAuth token.
type Client struct {
	opts   Options
	http   *http.Client
	now    func() time.Time
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewClient validates credentials and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "acquire", "reddit client", "reddit client_id and client_secret are required", nil)
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "acquire", "reddit client", "reddit user_agent is required", nil)
	}
	opts.AuthURL = strings.TrimRight(opts.AuthURL, "/")
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{opts: opts, http: client, now: time.Now}, nil
}

// Listing returns up to limit posts from /r/{subreddit}/{sort}.
func (c *Client) Listing(ctx context.Context, subreddit, sort string, limit int) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/r/%s/%s", c.opts.BaseURL, url.PathEscape(subreddit), url.PathEscape(sort))
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")

	var envelope listingEnvelope
	if err := c.getJSON(ctx, endpoint+"?"+query.Encode(), "reddit listing", &envelope); err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(envelope.Data.Children))
	for _, child := range envelope.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var post Post
		if err := json.Unmarshal(child.Data, &post); err != nil {
			return nil, fmt.Errorf("decode reddit post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// TopComments returns the bodies of the first n top-level comments on a post
// sorted by score.
func (c *Client) TopComments(ctx context.Context, postID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("sort", "top")
	query.Set("limit", strconv.Itoa(n))
	query.Set("depth", "1")
	query.Set("raw_json", "1")
	endpoint := fmt.Sprintf("%s/comments/%s?%s", c.opts.BaseURL, url.PathEscape(postID), query.Encode())

	var listings []listingEnvelope
	if err := c.getJSON(ctx, endpoint, "reddit comments", &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, nil
	}
	bodies := make([]string, 0, n)
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var entry comment
		if err := json.Unmarshal(child.Data, &entry); err != nil {
			return nil, fmt.Errorf("decode reddit comment: %w", err)
		}
		bodies = append(bodies, entry.Body)
		if len(bodies) == n {
			break
		}
	}
	return bodies, nil
}

// Download streams the resource at rawURL into w.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "acquire", "download", rawURL, err)
	}
	defer resp.Body.Close()
	if err := services.CheckResponse(resp, "download "+rawURL); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return services.Wrap(services.ErrTransient, "acquire", "download", rawURL, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, operation string, dst any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "acquire", operation, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		c.resetToken()
	}
	if err := services.CheckResponse(resp, operation); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrExternal, "acquire", operation, "decode response", err)
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "acquire", "reddit token", "request failed", err)
	}
	defer resp.Body.Close()
	if err := services.CheckResponse(resp, "reddit token"); err != nil {
		return "", err
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrExternal, "acquire", "reddit token", "decode response", err)
	}
	if payload.AccessToken == "" {
		return "", services.Wrap(services.ErrConfiguration, "acquire", "reddit token", "empty access token", errors.New(resp.Status))
	}
	c.token = payload.AccessToken
	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime > tokenSkew {
		lifetime -= tokenSkew
	}
	c.expiry = c.now().Add(lifetime)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
