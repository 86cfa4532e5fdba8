// Package shortener talks to the external link-shortening redirector that
// fronts the verification step. It is a fragile collaborator: requests are
// retried a few times with backoff and then surfaced as a retryable error.
package shortener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxAttempts = 3

type Client struct {
	httpClient *http.Client
	apiBase    string
	apiKey     string
}

func NewClient(apiBase, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    apiBase,
		apiKey:     apiKey,
	}
}

// Shorten wraps destination into a short verification link.
func (c *Client) Shorten(ctx context.Context, destination string) (string, error) {
	endpoint := fmt.Sprintf("%s/api?%s", c.apiBase, url.Values{
		"api":    {c.apiKey},
		"url":    {destination},
		"format": {"text"},
	}.Encode())

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(200*time.Millisecond))

	var short string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		link, err := c.shortenOnce(ctx, endpoint)
		if err != nil {
			return err
		}
		short = link
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("shortening link: %w", err)
	}

	return short, nil
}

func (c *Client) shortenOnce(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building shorten request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", retry.RetryableError(fmt.Errorf("shortener returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shortener returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", retry.RetryableError(err)
	}

	link := strings.TrimSpace(string(body))
	if link == "" || !strings.HasPrefix(link, "http") {
		return "", fmt.Errorf("shortener returned unexpected body")
	}

	return link, nil
}
