package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"memeshop/internal/services"
)

const (
	stageName   = "shopify"
	ordersLimit = 250
	maxPages    = 200
	timeLayout  = "2006-01-02T15:04:05Z"
)

var (
	numericIDPattern = regexp.MustCompile(`(\d+)$`)
	nextLinkPattern  = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)
)

// Options configures a Client.
type Options struct {
	Domain      string
	AccessToken string
	APIVersion  string
	Scheme      string
	HTTPClient  *http.Client
	Now         func() time.Time
}

// Client reads order history from the Shopify Admin API.
type Client struct {
	domain     string
	token      string
	apiVersion string
	scheme     string
	http       *http.Client
	now        func() time.Time
}

// NewClient validates the storefront settings and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Domain) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "shopify domain is required", nil)
	}
	if strings.TrimSpace(opts.AccessToken) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "shopify access_token is required", nil)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	version := opts.APIVersion
	if version == "" {
		version = "2023-10"
	}
	return &Client{
		domain:     strings.TrimSpace(opts.Domain),
		token:      strings.TrimSpace(opts.AccessToken),
		apiVersion: version,
		scheme:     scheme,
		http:       client,
		now:        now,
	}, nil
}

// NumericID extracts the trailing numeric id from a storefront gid such as
// "gid://shopify/Product/42". It returns "" when none is present.
func NumericID(gid string) string {
	match := numericIDPattern.FindStringSubmatch(strings.TrimSpace(gid))
	if match == nil {
		return ""
	}
	return match[1]
}

// ProductURL builds the public product page for handle, falling back to slug
// when the handle is unknown. An empty domain yields "".
func ProductURL(domain, handle, slug string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	path := strings.TrimSpace(handle)
	if path == "" {
		path = strings.TrimSpace(slug)
	}
	if path == "" {
		return ""
	}
	return "https://" + domain + "/products/" + path
}

type ordersResponse struct {
	Orders []struct {
		LineItems []struct {
			ProductID *int64 `json:"product_id"`
			Quantity  int    `json:"quantity"`
		} `json:"line_items"`
	} `json:"orders"`
}

// CountSales sums line item quantities for productID across all orders
// created in the last daysBack days, following pagination links. A next link
// that repeats, or more than maxPages pages, fails the count rather than
// returning a partial total.
func (c *Client) CountSales(ctx context.Context, productID string, daysBack int) (int, error) {
	numeric := NumericID(productID)
	if numeric == "" {
		return 0, services.Wrap(services.ErrValidation, stageName, "count sales", fmt.Sprintf("product id %q has no numeric component", productID), nil)
	}

	since := c.now().UTC().Add(-time.Duration(daysBack) * 24 * time.Hour)
	query := url.Values{}
	query.Set("status", "any")
	query.Set("created_at_min", since.Format(timeLayout))
	query.Set("limit", strconv.Itoa(ordersLimit))
	query.Set("fields", "line_items")
	next := fmt.Sprintf("%s://%s/admin/api/%s/orders.json?%s", c.scheme, c.domain, c.apiVersion, query.Encode())

	total := 0
	visited := make(map[string]struct{})
	for next != "" {
		if _, seen := visited[next]; seen {
			return 0, services.Wrap(services.ErrExternal, stageName, "count sales", "pagination revisited "+next, nil)
		}
		if len(visited) >= maxPages {
			return 0, services.Wrap(services.ErrExternal, stageName, "count sales", fmt.Sprintf("more than %d order pages", maxPages), nil)
		}
		visited[next] = struct{}{}
		page, link, err := c.fetchOrders(ctx, next)
		if err != nil {
			return 0, err
		}
		for _, order := range page.Orders {
			for _, item := range order.LineItems {
				if item.ProductID != nil && strconv.FormatInt(*item.ProductID, 10) == numeric {
					total += item.Quantity
				}
			}
		}
		next = parseNextLink(link)
	}
	return total, nil
}

func (c *Client) fetchOrders(ctx context.Context, endpoint string) (*ordersResponse, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build orders request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "list orders", "request failed", err)
	}
	defer resp.Body.Close()
	if err := services.CheckResponse(resp, "shopify list orders"); err != nil {
		return nil, "", err
	}
	var page ordersResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", services.Wrap(services.ErrExternal, stageName, "list orders", "decode response", err)
	}
	return &page, resp.Header.Get("Link"), nil
}

func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if match := nextLinkPattern.FindStringSubmatch(part); match != nil {
			return match[1]
		}
	}
	return ""
}
