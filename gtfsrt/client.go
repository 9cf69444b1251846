package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Client fetches GTFS-RT protobuf data over HTTP.
type Client struct {
	httpClient *http.Client
	apiKey     string
	keyHeader  string
}

// NewClient creates a client with the given request timeout. When apiKey is set it is
// sent in keyHeader (default "x-api-key").
func NewClient(timeout time.Duration, apiKey, keyHeader string) *Client {
	if keyHeader == "" {
		keyHeader = "x-api-key"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		keyHeader:  keyHeader,
	}
}

// Fetch fetches a single feed and returns raw protobuf bytes.
// Returns nil if url is empty (allows optional feeds).
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// FetchFeed fetches and decodes a feed. It returns nil, nil for an empty url.
func (c *Client) FetchFeed(ctx context.Context, url string) (*gtfsrtpb.FeedMessage, error) {
	data, err := c.Fetch(ctx, url)
	if err != nil || data == nil {
		return nil, err
	}
	return Decode(data)
}

// Decode unmarshals a FeedMessage.
func Decode(data []byte) (*gtfsrtpb.FeedMessage, error) {
	fm := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(data, fm); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}
	return fm, nil
}
