// ABOUTME: HTTP byte-stream loader
// ABOUTME: Streams a URL body with progress from Content-Length
package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
)

// HTTPConfig holds HTTP loader settings
type HTTPConfig struct {
	// Client defaults to http.DefaultClient
	Client *http.Client

	// UserAgent is sent when set
	UserAgent string

	// ReadSize defaults to DefaultReadSize
	ReadSize int
}

// HTTPLoader loads a URL with a streaming GET
type HTTPLoader struct {
	readLoader
	url string
}

// NewHTTPLoader creates a loader for url
func NewHTTPLoader(url string, config HTTPConfig) *HTTPLoader {
	if config.Client == nil {
		config.Client = http.DefaultClient
	}

	l := &HTTPLoader{url: url}
	l.readSize = config.ReadSize
	l.open = func(ctx context.Context) (io.ReadCloser, int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}
		if config.UserAgent != "" {
			req.Header.Set("User-Agent", config.UserAgent)
		}

		log.Printf("Loading %s", url)
		resp, err := config.Client.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch %s: %w", url, err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, 0, fmt.Errorf("bad response (%d %s)", resp.StatusCode, http.StatusText(resp.StatusCode))
		}

		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		return resp.Body, total, nil
	}
	return l
}

// URL returns the loaded address
func (l *HTTPLoader) URL() string {
	return l.url
}
