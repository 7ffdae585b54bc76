package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phishguard/threatpipeline/internal/ports"
)

// DefaultTimeout bounds one alert batch POST
const DefaultTimeout = 10 * time.Second

// HTTPClient implements ports.AlertTransport over plain HTTPS POST
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a collector transport. A zero timeout selects
// DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Post sends a JSON body to the collector endpoint. A reachable collector
// answering anything at all yields a response (OK reflecting 2xx); only
// transport-level failures return an error.
func (c *HTTPClient) Post(ctx context.Context, endpoint string, body []byte) (ports.TransportResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.TransportResponse{}, fmt.Errorf("build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.TransportResponse{}, fmt.Errorf("post to collector: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	return ports.TransportResponse{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}, nil
}
