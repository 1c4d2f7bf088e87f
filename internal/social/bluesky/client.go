package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"memeshop/internal/queue"
	"memeshop/internal/services"
	"memeshop/internal/textutil"
)

const (
	// Name is the channel key used in channel_urls.
	Name           = "bluesky"
	stageName      = "bluesky"
	postCollection = "app.bsky.feed.post"
	maxPostLength  = 300
	sessionSkew    = time.Minute
	// defaultSessionTTL applies when the access token carries no exp claim.
	defaultSessionTTL = 90 * time.Minute
)

// Options configures a Client.
type Options struct {
	Handle      string
	AppPassword string
	PDSURL      string
	HTTPClient  *http.Client
	Now         func() time.Time
}

// Client posts image records to Bluesky through the AT Protocol XRPC API.
type Client struct {
	handle   string
	password string
	baseURL  string
	http     *http.Client
	now      func() time.Time

	mu      sync.Mutex
	session *session
}

type session struct {
	accessJWT string
	did       string
	handle    string
	expires   time.Time
}

// NewClient validates credentials and returns a Client. No request is made
// until the first post.
func NewClient(opts Options) (*Client, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(opts.Handle), "@")
	if handle == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "bluesky handle is required", nil)
	}
	if strings.TrimSpace(opts.AppPassword) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "bluesky app_password is required", nil)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		handle:   handle,
		password: opts.AppPassword,
		baseURL:  strings.TrimRight(opts.PDSURL, "/"),
		http:     client,
		now:      now,
	}, nil
}

// Name identifies the channel.
func (c *Client) Name() string {
	return Name
}

// Post uploads the record's image as a blob and creates a feed post linking
// to the storefront. It returns the public post URL.
func (c *Client) Post(ctx context.Context, rec *queue.Record) (string, error) {
	contents, err := os.ReadFile(rec.LocalPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "read asset", rec.LocalPath, err)
	}
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	blob, err := c.uploadBlob(ctx, sess, contents)
	if err != nil {
		return "", c.dropSessionOnAuthError(err)
	}
	uri, err := c.createRecord(ctx, sess, buildPost(rec, blob, c.now()))
	if err != nil {
		return "", c.dropSessionOnAuthError(err)
	}
	rkey := uri[strings.LastIndex(uri, "/")+1:]
	if rkey == "" {
		return "", services.Wrap(services.ErrExternal, stageName, "create record", "response uri has no record key", nil)
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", sess.handle, rkey), nil
}

// Text is the post body for a record, clipped to the post length limit.
func Text(rec *queue.Record) string {
	title := textutil.Truncate(rec.Title, maxPostLength-len("\nBuy here: ")-len(storefrontURL(rec)))
	return fmt.Sprintf("%s\nBuy here: %s", title, storefrontURL(rec))
}

func storefrontURL(rec *queue.Record) string {
	if rec.StorefrontURL == nil {
		return ""
	}
	return *rec.StorefrontURL
}

type feedPost struct {
	Type      string      `json:"$type"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	Facets    []facet     `json:"facets,omitempty"`
	Embed     imagesEmbed `json:"embed"`
}

type facet struct {
	Index    byteSlice `json:"index"`
	Features []link    `json:"features"`
}

type byteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type link struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

type imagesEmbed struct {
	Type   string          `json:"$type"`
	Images []embeddedImage `json:"images"`
}

type embeddedImage struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

// buildPost assembles the feed record. The storefront URL gets a link facet
// so clients render it clickable; facet offsets are UTF-8 byte positions.
func buildPost(rec *queue.Record, blob json.RawMessage, now time.Time) feedPost {
	text := Text(rec)
	post := feedPost{
		Type:      postCollection,
		Text:      text,
		CreatedAt: now.UTC().Format(time.RFC3339),
		Embed: imagesEmbed{
			Type:   "app.bsky.embed.images",
			Images: []embeddedImage{{Alt: rec.Title, Image: blob}},
		},
	}
	if url := storefrontURL(rec); url != "" && utf8.ValidString(text) {
		start := strings.LastIndex(text, url)
		if start >= 0 {
			post.Facets = []facet{{
				Index:    byteSlice{ByteStart: start, ByteEnd: start + len(url)},
				Features: []link{{Type: "app.bsky.richtext.facet#link", URI: url}},
			}}
		}
	}
	return post
}

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	AccessJWT string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type blobResponse struct {
	Blob json.RawMessage `json:"blob"`
}

type createRecordRequest struct {
	Repo       string   `json:"repo"`
	Collection string   `json:"collection"`
	Record     feedPost `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (c *Client) ensureSession(ctx context.Context) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.now().Before(c.session.expires) {
		return c.session, nil
	}

	body, err := json.Marshal(sessionRequest{Identifier: c.handle, Password: c.password})
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.xrpc("com.atproto.server.createSession"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp sessionResponse
	if err := c.do(req, "create session", &resp); err != nil {
		return nil, err
	}
	if resp.AccessJWT == "" || resp.DID == "" {
		return nil, services.Wrap(services.ErrExternal, stageName, "create session", "response missing accessJwt or did", nil)
	}
	handle := resp.Handle
	if handle == "" {
		handle = c.handle
	}
	c.session = &session{
		accessJWT: resp.AccessJWT,
		did:       resp.DID,
		handle:    handle,
		expires:   c.tokenExpiry(resp.AccessJWT),
	}
	return c.session, nil
}

// tokenExpiry reads exp from the access JWT without verifying it; the PDS is
// the only party that needs to trust the signature.
func (c *Client) tokenExpiry(token string) time.Time {
	fallback := c.now().Add(defaultSessionTTL - sessionSkew)
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Add(-sessionSkew)
}

// dropSessionOnAuthError forgets an expired or revoked session so the next
// attempt logs in again.
func (c *Client) dropSessionOnAuthError(err error) error {
	if services.StatusCode(err) == http.StatusUnauthorized {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
	}
	return err
}

func (c *Client) uploadBlob(ctx context.Context, sess *session, contents []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.xrpc("com.atproto.repo.uploadBlob"), bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("build blob request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(contents))
	req.Header.Set("Authorization", "Bearer "+sess.accessJWT)

	var resp blobResponse
	if err := c.do(req, "upload blob", &resp); err != nil {
		return nil, err
	}
	if len(resp.Blob) == 0 {
		return nil, services.Wrap(services.ErrExternal, stageName, "upload blob", "response missing blob", nil)
	}
	return resp.Blob, nil
}

func (c *Client) createRecord(ctx context.Context, sess *session, post feedPost) (string, error) {
	body, err := json.Marshal(createRecordRequest{Repo: sess.did, Collection: postCollection, Record: post})
	if err != nil {
		return "", fmt.Errorf("encode post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.xrpc("com.atproto.repo.createRecord"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.accessJWT)

	var resp createRecordResponse
	if err := c.do(req, "create record", &resp); err != nil {
		return "", err
	}
	if resp.URI == "" {
		return "", services.Wrap(services.ErrExternal, stageName, "create record", "response missing uri", nil)
	}
	return resp.URI, nil
}

func (c *Client) xrpc(method string) string {
	return c.baseURL + "/xrpc/" + method
}

func (c *Client) do(req *http.Request, operation string, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, operation, "request failed", err)
	}
	defer resp.Body.Close()
	if err := services.CheckResponse(resp, "bluesky "+operation); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return services.Wrap(services.ErrExternal, stageName, operation, "decode response", err)
	}
	return nil
}
