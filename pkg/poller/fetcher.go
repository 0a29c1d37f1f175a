package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"election_board/pkg/config"
	"election_board/pkg/election"
)

// Error variables for consistent error handling
var (
	ErrFetchFailed = errors.New("data fetch failed")
	ErrBadStatus   = errors.New("unexpected status")
	ErrStopped     = errors.New("poller stopped")
)

// Fetcher retrieves one snapshot from the results endpoint
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (*election.ElectionData, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, endpoint string) (*election.ElectionData, error)

func (f FetcherFunc) Fetch(ctx context.Context, endpoint string) (*election.ElectionData, error) {
	return f(ctx, endpoint)
}

// HTTPFetcher fetches snapshots with a plain GET
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
}

// NewHTTPFetcher creates a fetcher honouring the poller timeout and body limit
func NewHTTPFetcher(cfg *config.PollerConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch issues the GET and decodes the body. Every failure wraps
// ErrFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, endpoint string) (*election.ElectionData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %w: %s", ErrFetchFailed, ErrBadStatus, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes)
	}

	data, err := election.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	return data, nil
}
