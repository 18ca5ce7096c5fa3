package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pettracker/internal/model"
)

const maxResponseSize = 10 << 20

// EncodeFunc turns a frame into the image bytes uploaded for inference.
type EncodeFunc func(frame model.Frame) ([]byte, error)

// HTTPClient calls a hosted inference API in the Roboflow style:
// POST {api_url}/{model_id}?api_key=KEY with the base64 encoded image as body.
type HTTPClient struct {
	apiURL *url.URL
	apiKey string
	client *http.Client
	encode EncodeFunc
}

type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithTimeout bounds each inference request; zero means no limit.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.client = &http.Client{Timeout: d, Transport: h.client.Transport}
		}
	}
}

// WithEncoder replaces the JPEG encoder used for uploads.
func WithEncoder(fn EncodeFunc) HTTPOption {
	return func(h *HTTPClient) { h.encode = fn }
}

// NewHTTPClient validates the API location and credentials.
func NewHTTPClient(apiURL, apiKey string, opts ...HTTPOption) (*HTTPClient, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("inference API URL must be provided through ROBOFLOW_API_URL")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("inference API key must be provided through ROBOFLOW_API_KEY")
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid inference API URL %q", apiURL)
	}

	c := &HTTPClient{
		apiURL: u,
		apiKey: apiKey,
		client: &http.Client{},
		encode: func(frame model.Frame) ([]byte, error) {
			return EncodeJPEG(frame, DefaultJPEGQuality)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Infer uploads the frame and decodes the predictions.
func (c *HTTPClient) Infer(ctx context.Context, frame model.Frame, modelID string) (*Result, error) {
	if modelID == "" {
		return nil, fmt.Errorf("model id is empty")
	}

	img, err := c.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	endpoint := c.apiURL.JoinPath(modelID)
	q := endpoint.Query()
	q.Set("api_key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(),
		strings.NewReader(base64.StdEncoding.EncodeToString(img)))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call inference API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("inference API returned %s: %s", resp.Status, excerpt(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("malformed inference response: %w", err)
	}
	return &result, nil
}

func excerpt(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
