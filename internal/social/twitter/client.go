package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dghubble/oauth1"

	"memeshop/internal/queue"
	"memeshop/internal/services"
)

const (
	// Name is the channel key used in channel_urls.
	Name      = "twitter"
	stageName = "twitter"
	statusURL = "https://twitter.com/i/web/status/"
)

// Options configures a Client.
type Options struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	UploadURL      string
	APIURL         string
	// HTTPClient is the transport the OAuth1 signer wraps.
	HTTPClient *http.Client
}

// Client posts an image tweet using OAuth 1.0a user context: a v1.1 media
// upload followed by a v2 tweet create.
type Client struct {
	http      *http.Client
	uploadURL string
	apiURL    string
}

// NewClient validates credentials and builds a signing HTTP client.
func NewClient(opts Options) (*Client, error) {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"consumer_key", opts.ConsumerKey},
		{"consumer_secret", opts.ConsumerSecret},
		{"access_token", opts.AccessToken},
		{"access_secret", opts.AccessSecret},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "twitter credentials missing: "+strings.Join(missing, ", "), nil)
	}
	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, opts.HTTPClient)
	}
	cfg := oauth1.NewConfig(opts.ConsumerKey, opts.ConsumerSecret)
	token := oauth1.NewToken(opts.AccessToken, opts.AccessSecret)
	return &Client{
		http:      cfg.Client(ctx, token),
		uploadURL: strings.TrimRight(opts.UploadURL, "/"),
		apiURL:    strings.TrimRight(opts.APIURL, "/"),
	}, nil
}

// Name identifies the channel.
func (c *Client) Name() string {
	return Name
}

// Post uploads the record's image and tweets its title with the storefront
// link. It returns the public status URL.
func (c *Client) Post(ctx context.Context, rec *queue.Record) (string, error) {
	mediaID, err := c.uploadMedia(ctx, rec.LocalPath)
	if err != nil {
		return "", err
	}
	id, err := c.createTweet(ctx, Text(rec), mediaID)
	if err != nil {
		return "", err
	}
	return statusURL + id, nil
}

// Text is the tweet body for a record.
func Text(rec *queue.Record) string {
	url := ""
	if rec.StorefrontURL != nil {
		url = *rec.StorefrontURL
	}
	return fmt.Sprintf("%s\nBuy now: %s", rec.Title, url)
}

type mediaResponse struct {
	MediaIDString string `json:"media_id_string"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (c *Client) uploadMedia(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "upload media", "open asset", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build media form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close media form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/media/upload.json", &body)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp mediaResponse
	if err := c.do(req, "upload media", &resp); err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", services.Wrap(services.ErrExternal, stageName, "upload media", "response missing media_id_string", nil)
	}
	return resp.MediaIDString, nil
}

func (c *Client) createTweet(ctx context.Context, text, mediaID string) (string, error) {
	payload := tweetRequest{Text: text}
	if mediaID != "" {
		payload.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode tweet: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tweets", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp tweetResponse
	if err := c.do(req, "create tweet", &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", services.Wrap(services.ErrExternal, stageName, "create tweet", "response missing tweet id", nil)
	}
	return resp.Data.ID, nil
}

func (c *Client) do(req *http.Request, operation string, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, operation, "request failed", err)
	}
	defer resp.Body.Close()
	if err := services.CheckResponse(resp, "twitter "+operation); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrExternal, stageName, operation, "decode response", err)
	}
	return nil
}
