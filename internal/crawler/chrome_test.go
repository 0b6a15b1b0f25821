package crawler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserFetcherRendersPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/content", r.URL.Path)

		var req contentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://kaspi.kz/shop/c/pharmacy/", req.URL)
		require.NotNil(t, req.WaitForSelector)
		assert.Equal(t, "div.item-card", req.WaitForSelector.Selector)
		assert.Equal(t, int64(1500), req.WaitForSelector.Timeout)
		assert.Equal(t, "domcontentloaded", req.GotoOptions.WaitUntil)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div class="item-card">ok</div></body></html>`))
	}))
	defer server.Close()

	fetcher := NewBrowserFetcher(server.URL+"/", "div.item-card", 2*time.Second)
	body, err := fetcher.FetchPage(context.Background(), "https://kaspi.kz/shop/c/pharmacy/")
	require.NoError(t, err)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "item-card")
}

func TestBrowserFetcherErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"queue full", http.StatusTooManyRequests, "", "rate limited"},
		{"server error", http.StatusInternalServerError, "", "unexpected status code: 500"},
		{"empty document", http.StatusOK, "timeout", "returned no document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			fetcher := NewBrowserFetcher(server.URL, "", time.Second)
			_, err := fetcher.FetchPage(context.Background(), "https://clevermarket.kz/supermarket/catalog/Chai/2329")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
