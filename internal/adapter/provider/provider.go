package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Doer is satisfied by *http.Client and *httpx.ResilientClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// fetch performs a GET and returns the body of a 200 response. The caller
// closes the body.
func fetch(ctx context.Context, client Doer, feedURL string, header http.Header) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
