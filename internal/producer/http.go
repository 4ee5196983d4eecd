package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPProducer calls an external embedding service over HTTP. Requests are
// rate-limited so a large sync pass does not overwhelm the service.
type HTTPProducer struct {
	endpoint   string
	dimensions int
	client     *http.Client
	limiter    *rate.Limiter
}

// NewHTTPProducer creates a producer for the given endpoint. ratePerSecond
// and burst bound the request rate; timeout bounds a single request.
func NewHTTPProducer(endpoint string, dimensions int, timeout time.Duration, ratePerSecond float64, burst int) *HTTPProducer {
	return &HTTPProducer{
		endpoint:   endpoint,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Produce embeds a single text.
func (p *HTTPProducer) Produce(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.ProduceBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// ProduceBatch embeds texts in one request. Transport failures, non-2xx
// responses, and malformed bodies all wrap into *Error so the coordinator
// can treat them uniformly as a failed regeneration.
func (p *HTTPProducer) ProduceBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &Error{Err: err}
	}

	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, &Error{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{Err: fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, string(b))}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Vectors) != len(texts) {
		return nil, &Error{Err: fmt.Errorf("expected %d vectors, got %d", len(texts), len(parsed.Vectors))}
	}
	for i, vec := range parsed.Vectors {
		if len(vec) != p.dimensions {
			return nil, &Error{Err: fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), p.dimensions)}
		}
	}
	return parsed.Vectors, nil
}

// Dimensions returns the configured vector dimension.
func (p *HTTPProducer) Dimensions() int {
	return p.dimensions
}
