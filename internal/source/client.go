// internal/source/client.go
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/pkg/core"
)

// maxBodySize caps a single snapshot response.
const maxBodySize = 32 << 20

// Client fetches snapshots from the positions service.
type Client struct {
	url        string
	proj       geo.Projection
	httpClient *http.Client
	seq        atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithProjection sets the planar projection snapshots are moved into.
func WithProjection(p geo.Projection) Option {
	return func(c *Client) { c.proj = p }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a new source client for the given endpoint.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		proj:       geo.WebMercator,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint being polled.
func (c *Client) URL() string {
	return c.url
}

// Fetch retrieves and decodes one snapshot.
func (c *Client) Fetch(ctx context.Context) (core.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: create request: %w", ErrSource, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: request failed: %w", ErrSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Snapshot{}, fmt.Errorf("%w: source returned status %d", ErrSource, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: read body: %w", ErrSource, err)
	}

	snap, err := Decode(data, c.proj)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap.Seq = c.seq.Add(1)
	snap.Received = time.Now()
	return snap, nil
}
