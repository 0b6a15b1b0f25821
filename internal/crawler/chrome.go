package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/pricebot/helpers"
)

// BrowserFetcher renders pages in a headless Chrome exposed by a
// browserless-compatible /content endpoint, for catalogs that build their
// product grid in JavaScript.
type BrowserFetcher struct {
	Addr         string
	Client       *http.Client
	WaitSelector string
	// WaitTimeout bounds how long the browser waits for WaitSelector
	WaitTimeout time.Duration
}

// NewBrowserFetcher creates a fetcher rendering through the browser at addr
func NewBrowserFetcher(addr, waitSelector string, timeout time.Duration) *BrowserFetcher {
	return &BrowserFetcher{
		Addr:         strings.TrimRight(addr, "/"),
		Client:       helpers.NewClient(timeout),
		WaitSelector: waitSelector,
		WaitTimeout:  timeout * 3 / 4,
	}
}

type contentRequest struct {
	URL             string           `json:"url"`
	WaitForSelector *waitForSelector `json:"waitForSelector,omitempty"`
	GotoOptions     gotoOptions      `json:"gotoOptions"`
}

type waitForSelector struct {
	Selector string `json:"selector"`
	Timeout  int64  `json:"timeout"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
}

// FetchPage implements PageFetcher
func (f *BrowserFetcher) FetchPage(ctx context.Context, url string) (io.Reader, error) {
	payload := contentRequest{
		URL:         url,
		GotoOptions: gotoOptions{WaitUntil: "domcontentloaded"},
	}
	if f.WaitSelector != "" {
		payload.WaitForSelector = &waitForSelector{
			Selector: f.WaitSelector,
			Timeout:  f.WaitTimeout.Milliseconds(),
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode browser request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Addr+"/content", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited; browser queue full")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render %s unexpected status code: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}
	if !bytes.Contains(body, []byte("<html")) && !bytes.Contains(body, []byte("<body")) {
		return nil, fmt.Errorf("render %s returned no document", url)
	}

	return helpers.DecodeUTF8(body, resp.Header.Get("Content-Type"))
}
