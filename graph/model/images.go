package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Inline is a fetched image ready for providers that require inline bytes
// (Gemini, Anthropic) rather than URLs.
type Inline struct {
	MIMEType string
	Data     []byte
}

// imageFetchTimeout bounds each individual photo download.
const imageFetchTimeout = 8 * time.Second

// maxImageBytes guards against oversized photo responses.
const maxImageBytes = 8 << 20

// FetchInline downloads a single image and returns its bytes and MIME type.
func FetchInline(ctx context.Context, url string) (Inline, error) {
	ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Inline{}, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Inline{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Inline{}, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Inline{}, fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return Inline{MIMEType: mimeType, Data: data}, nil
}

// FetchInlineAll downloads up to MaxImages of the given URLs concurrently.
// Failed fetches are dropped silently; the returned slice preserves the
// order of the URLs that succeeded.
func FetchInlineAll(ctx context.Context, urls []string) []Inline {
	if len(urls) > MaxImages {
		urls = urls[:MaxImages]
	}

	results := make([]*Inline, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			inline, err := FetchInline(ctx, url)
			if err != nil {
				return
			}
			results[i] = &inline
		}(i, url)
	}
	wg.Wait()

	out := make([]Inline, 0, len(urls))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
