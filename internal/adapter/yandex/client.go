package yandex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// DefaultBaseURL is the public static map endpoint.
const DefaultBaseURL = "https://static-maps.yandex.ru/1.x/"

// Client fetches static map tiles centered on a point.
type Client struct {
	baseURL    string
	marker     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a static map client. marker is the point style appended
// to the pt parameter, e.g. "round".
func NewClient(baseURL, marker string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		marker:     marker,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchMap returns the raw image for coords at the given span. A non-2xx
// response is returned as *domain.HTTPStatusError; network failures and
// non-image bodies wrap domain.ErrTransient.
func (c *Client) FetchMap(ctx context.Context, coords domain.Coordinates, span domain.Span) ([]byte, error) {
	ll := coords.String()
	params := url.Values{
		"ll":   {ll},
		"lang": {"en-US"},
		"spn":  {span.String()},
		"l":    {"map"},
		"pt":   {ll + "," + c.marker},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: static map request: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read static map: %w", domain.ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("static map rejected", "status", resp.StatusCode, "span", span.String())
		return nil, &domain.HTTPStatusError{Service: "static map", StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image") {
		return nil, fmt.Errorf("%w: static map content type %q", domain.ErrTransient, ct)
	}
	return body, nil
}

func snippet(b []byte) string {
	const limit = 256
	if len(b) > limit {
		b = b[:limit]
	}
	return string(b)
}
