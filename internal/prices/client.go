package prices

import (
	"net/http"
)

// DefaultEndpoint is the wiki prices endpoint returning the latest instant-buy and
// instant-sell price of every tradeable item.
const DefaultEndpoint = "https://prices.runescape.wiki/api/v1/osrs/latest"

// DefaultMaxBodyBytes caps how much of a response body is read before parsing.
const DefaultMaxBodyBytes = 32 << 20

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=prices_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches price snapshots from the wiki prices API.
type Client struct {
	// endpoint is the full URL of the snapshot resource.
	endpoint string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// maxBodyBytes bounds the body read; <= 0 means DefaultMaxBodyBytes.
	maxBodyBytes int64
}

// ClientOption is a configuration option for the prices client.
type ClientOption func(*Client)

// WithEndpoint sets the snapshot URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithMaxBodyBytes bounds the number of body bytes read per response.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *Client) {
		c.maxBodyBytes = n
	}
}

// NewClient creates a new prices client. The wiki asks every consumer to send a
// descriptive User-Agent, so an empty userAgent is rejected.
func NewClient(userAgent string, options ...ClientOption) (*Client, error) {
	if userAgent == "" {
		return nil, ErrMissingUserAgent
	}
	var client = &Client{
		endpoint:     DefaultEndpoint,
		httpClient:   http.DefaultClient,
		header:       http.Header{},
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	client.header.Set("User-Agent", userAgent)
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Endpoint returns the configured snapshot URL.
func (c *Client) Endpoint() string { return c.endpoint }
