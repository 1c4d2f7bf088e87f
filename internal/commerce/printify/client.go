package printify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"memeshop/internal/services"
)

const stageName = "printify"

// Options configures a Client.
type Options struct {
	BaseURL     string
	AccessToken string
	ShopID      string
	HTTPClient  *http.Client
}

// Client calls the Printify REST API for one shop.
type Client struct {
	baseURL string
	token   string
	shopID  string
	http    *http.Client
}

// NewClient validates credentials and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.AccessToken) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "printify access_token is required", nil)
	}
	if strings.TrimSpace(opts.ShopID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "printify shop_id is required", nil)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   strings.TrimSpace(opts.AccessToken),
		shopID:  strings.TrimSpace(opts.ShopID),
		http:    client,
	}, nil
}

// UploadImage sends contents as a base64 upload and returns the image id.
func (c *Client) UploadImage(ctx context.Context, fileName string, contents []byte) (string, error) {
	body := uploadRequest{
		FileName: fileName,
		Contents: base64.StdEncoding.EncodeToString(contents),
	}
	var resp uploadResponse
	if err := c.do(ctx, http.MethodPost, "/uploads/images.json", "upload image", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", services.Wrap(services.ErrExternal, stageName, "upload image", "response missing image id", nil)
	}
	return resp.ID, nil
}

// CreateProduct creates a draft product and returns it.
func (c *Client) CreateProduct(ctx context.Context, req ProductRequest) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodPost, c.shopPath("products.json"), "create product", req, &product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		return nil, services.Wrap(services.ErrExternal, stageName, "create product", "response missing product id", nil)
	}
	return &product, nil
}

// PublishProduct pushes the product to the connected sales channel.
func (c *Client) PublishProduct(ctx context.Context, productID string, req PublishRequest) error {
	path := c.shopPath("products", url.PathEscape(productID), "publish.json")
	return c.do(ctx, http.MethodPost, path, "publish product", req, nil)
}

// GetProduct fetches a product, including its storefront link once published.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	path := c.shopPath("products", url.PathEscape(productID)+".json")
	if err := c.do(ctx, http.MethodGet, path, "get product", nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product from the shop and its sales channel.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	path := c.shopPath("products", url.PathEscape(productID)+".json")
	return c.do(ctx, http.MethodDelete, path, "delete product", nil, nil)
}

func (c *Client) shopPath(parts ...string) string {
	return "/shops/" + url.PathEscape(c.shopID) + "/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, path, operation string, payload, dst any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, operation, "request failed", err)
	}
	defer resp.Body.Close()
	if err := services.CheckResponse(resp, "printify "+operation); err != nil {
		return err
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrExternal, stageName, operation, "decode response", err)
	}
	return nil
}
