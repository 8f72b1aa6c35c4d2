// Package execution implements the thin JSON-RPC client for the execution
// layer consumed by this system. Only eth_getBlockByHash is used.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/retry"
	"github.com/blobscan/blob-indexer/types"
)

// DefaultTimeout is the per-request timeout used for execution HTTP calls.
const DefaultTimeout = 8 * time.Second

// Client is a thin, shared, thread-safe JSON-RPC client for the execution
// layer.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New constructs a Client against endpoint (e.g. "http://localhost:8545").
func New(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// GetBlockByHash fetches the execution block (with full transactions) for
// hash via eth_getBlockByHash(hash, true). A null result returns (nil, nil),
// meaning the execution layer does not yet have this block.
func (c *Client) GetBlockByHash(ctx context.Context, hash types.Hash) (*types.ExecutionBlock, error) {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_getBlockByHash",
		Params:  []interface{}{hash.Hex(), true},
	})
	if err != nil {
		return nil, errors.Wrap(err, "execution: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "execution: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Transient(errors.Wrapf(err, "execution: request to %s", c.endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return nil, retry.Transient(errors.Newf("execution: %s returned %d", c.endpoint, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("execution: %s returned unexpected status %d", c.endpoint, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, errors.Wrapf(err, "execution: decode response from %s", c.endpoint)
	}
	if rpcResp.Error != nil {
		return nil, retry.Transient(errors.Newf("execution: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, nil
	}

	var block types.ExecutionBlock
	if err := json.Unmarshal(rpcResp.Result, &block); err != nil {
		return nil, errors.Wrap(err, "execution: decode block")
	}
	return &block, nil
}
