package remotedataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client is the concrete Dataset implementation that queries a
// Socrata-like tabular backend over HTTP, using the teacher's outbound
// client factory (internal/core/httpclient) rather than a generic SDK —
// the wire protocol here is just "GET a SoQL query string", which
// doesn't warrant a dedicated client library.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against baseURL (e.g.
// "https://data.example.gov") using httpClient for transport.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

// Query issues resource.format?$query=soql against the configured
// backend and returns the raw response, leaving interpretation (status
// check, JSON/GeoJSON parsing) to Check and the caller.
func (c *Client) Query(ctx context.Context, resource, format, soql string) (Response, error) {
	u := fmt.Sprintf("%s/resource/%s.%s?%s", c.baseURL, url.PathEscape(resource), url.QueryEscape(format),
		url.Values{"$query": {soql}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, fmt.Errorf("remotedataset: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("remotedataset: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("remotedataset: read body: %w", err)
	}

	return Response{Status: resp.StatusCode, Body: body, HasBody: len(body) > 0}, nil
}
