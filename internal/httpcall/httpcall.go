// Package httpcall implements the ApiCall effect: an outbound HTTP
// request whose body is serialized from the current payload's data and
// whose response replaces it. net/http is stdlib for both this package
// and internal/httplisten — no available HTTP client library fits this
// better than the standard one, only routing/middleware helpers do.
package httpcall

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/songokas/hvents/internal/fileio"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Caller executes outbound requests with a bounded per-request timeout.
type Caller struct {
	client *http.Client
}

func NewCaller(timeout time.Duration) *Caller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Caller{client: &http.Client{Timeout: timeout}}
}

// Call executes cfg against data, returning the parsed response data. A
// network failure or a >=400 status both terminate the chain (EffectError);
// the distinction is only in the logged message.
func (c *Caller) Call(ctx context.Context, cfg models.ApiCallConfig, data models.Data) (models.Data, error) {
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType := encodeRequest(data, cfg.RequestContent)

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return models.Data{}, fmt.Errorf("api_call %s %s: build request: %w", method, cfg.URL, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	l := logger.L().With("method", method, "url", cfg.URL)
	resp, err := c.client.Do(req)
	if err != nil {
		l.Error("api_call network error", "error", err)
		return models.Data{}, fmt.Errorf("api_call %s %s: %w", method, cfg.URL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Data{}, fmt.Errorf("api_call %s %s: read response: %w", method, cfg.URL, err)
	}

	if resp.StatusCode >= 400 {
		l.Warn("api_call non-2xx response", "status", resp.StatusCode, "body_len", len(respBody))
		return models.Data{}, fmt.Errorf("api_call %s %s: status %d", method, cfg.URL, resp.StatusCode)
	}

	out, err := fileio.Decode(respBody, cfg.ResponseContent)
	if err != nil {
		return models.Data{}, fmt.Errorf("api_call %s %s: decode response: %w", method, cfg.URL, err)
	}
	return out, nil
}

func encodeRequest(data models.Data, requestContent string) (body []byte, contentType string) {
	switch requestContent {
	case "json":
		return data.AsBytes(), "application/json"
	case "bytes":
		return data.AsBytes(), "application/octet-stream"
	default:
		return data.AsBytes(), "text/plain"
	}
}
