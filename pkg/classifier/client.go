// Package classifier calls the external product-classification endpoint
// that maps a business name and website to a recommended product line.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client requests a product classification for a business.
type Client interface {
	Classify(ctx context.Context, name, websiteURL string) (string, error)
}

// ClassifyRequest is the request body for the classification endpoint.
type ClassifyRequest struct {
	Name       string `json:"name"`
	WebsiteURL string `json:"websiteUrl"`
}

// classifyItem is one element of the response array. Only the product field
// matters; the service returns other bookkeeping objects we skip over.
type classifyItem struct {
	Product *string `json:"product"`
}

// ErrNoProduct is returned when the response parses but carries no product
// field in any element. Callers treat it as "no recommendation", not as a
// transport failure.
var ErrNoProduct = eris.New("classifier: no product field in response")

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a classification client for the given endpoint URL.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ValidateWebsiteURL checks that raw is an absolute http or https URL.
// The check runs before any request is issued so malformed input never
// reaches the external service.
func ValidateWebsiteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return eris.Wrap(err, "classifier: parse website url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Errorf("classifier: website url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return eris.New("classifier: website url must be absolute")
	}
	return nil
}

// Classify posts the business identity and returns the product string from
// the first response element carrying one.
func (c *httpClient) Classify(ctx context.Context, name, websiteURL string) (string, error) {
	if name == "" {
		return "", eris.New("classifier: business name is required")
	}
	if err := ValidateWebsiteURL(websiteURL); err != nil {
		return "", err
	}

	body, err := json.Marshal(ClassifyRequest{Name: name, WebsiteURL: websiteURL})
	if err != nil {
		return "", eris.Wrap(err, "classifier: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "classifier: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", eris.Wrap(err, "classifier: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "classifier: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", eris.Errorf("classifier: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var items []classifyItem
	if err := json.Unmarshal(respBody, &items); err != nil {
		return "", eris.Wrap(err, "classifier: unmarshal response")
	}

	for _, item := range items {
		if item.Product != nil {
			return *item.Product, nil
		}
	}
	return "", ErrNoProduct
}
