package prices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMissingUserAgent is returned by NewClient when no User-Agent is given.
	ErrMissingUserAgent = errors.New("prices: user agent is required")
	// ErrMalformed marks a response body that could not be parsed into a Snapshot.
	ErrMalformed = errors.New("prices: malformed snapshot")
)

// StatusError is returned when the endpoint answers with a non-success status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Latest performs one GET against the snapshot endpoint and parses the body.
func (c *Client) Latest(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, &StatusError{Code: res.StatusCode}
	}

	limit := c.maxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformed, limit)
	}

	return Parse(body)
}
