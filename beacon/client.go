// Package beacon implements the thin HTTP client for the beacon API
// consumed by this system. Only the logical operations this system needs
// are implemented, so this is a minimal net/http wrapper, not a general
// client.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/retry"
	"github.com/blobscan/blob-indexer/types"
)

// DefaultTimeout is the per-request timeout used for beacon HTTP calls.
const DefaultTimeout = 8 * time.Second

// Client is a thin, shared, thread-safe HTTP client for the beacon API.
// Its connection pool is reused across every concurrent caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client against baseURL (e.g. "http://localhost:5052").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// GetBlock fetches the beacon block at id via GET v2/beacon/blocks/{id}.
// A 404 is not an error: it returns (nil, nil).
func (c *Client) GetBlock(ctx context.Context, id types.BlockId) (*types.BeaconBlock, error) {
	var block types.BeaconBlock
	found, err := c.getJSON(ctx, fmt.Sprintf("/eth/v2/beacon/blocks/%s", id), &block)
	if err != nil || !found {
		return nil, err
	}
	return &block, nil
}

// GetHeader fetches the beacon block header at id via GET
// v1/beacon/headers/{id}. A 404 returns (nil, nil).
func (c *Client) GetHeader(ctx context.Context, id types.BlockId) (*types.BeaconBlockHeader, error) {
	var header types.BeaconBlockHeader
	found, err := c.getJSON(ctx, fmt.Sprintf("/eth/v1/beacon/headers/%s", id), &header)
	if err != nil || !found {
		return nil, err
	}
	return &header, nil
}

// GetBlobSidecars fetches the blob sidecars for id via GET
// v1/beacon/blob_sidecars/{id}. A 404 returns (nil, nil); an empty data list
// returns an empty slice.
func (c *Client) GetBlobSidecars(ctx context.Context, id types.BlockId) ([]types.BlobSidecar, error) {
	var wire struct {
		Data []types.BlobSidecar `json:"data"`
	}
	found, err := c.getJSON(ctx, fmt.Sprintf("/eth/v1/beacon/blob_sidecars/%s", id), &wire)
	if err != nil || !found {
		return nil, err
	}
	return wire.Data, nil
}

// GetConfigSpec fetches the beacon chain spec map via GET v1/config/spec,
// used by callers that need network constants not covered by the network
// preset table.
func (c *Client) GetConfigSpec(ctx context.Context) (map[string]string, error) {
	var wire struct {
		Data map[string]string `json:"data"`
	}
	_, err := c.getJSON(ctx, "/eth/v1/config/spec", &wire)
	if err != nil {
		return nil, err
	}
	return wire.Data, nil
}

// EventsURL returns the URL the SSE client should subscribe to for the
// given topics: GET v1/events?topics=t1,t2,....
func (c *Client) EventsURL(topics []string) string {
	url := c.baseURL + "/eth/v1/events?topics="
	for i, t := range topics {
		if i > 0 {
			url += ","
		}
		url += t
	}
	return url
}

// getJSON issues a GET against path, decoding a 200 body into out. It
// returns found=false (with a nil error) on 404, classifies transport
// failures and 5xx, 429 and 408 statuses as retry.Transient, and returns
// any other non-200 status as an unmarked error.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, errors.Wrapf(err, "beacon: build request for %s", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, retry.Transient(errors.Wrapf(err, "beacon: request %s", c.baseURL+path))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return false, retry.Transient(errors.Newf("beacon: %s returned %d", c.baseURL+path, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return false, errors.Newf("beacon: %s returned unexpected status %d", c.baseURL+path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrapf(err, "beacon: decode response from %s", c.baseURL+path)
	}
	return true, nil
}
