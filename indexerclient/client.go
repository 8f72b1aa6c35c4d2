// Package indexerclient implements the thin HTTP client for the downstream
// indexer API this project owns. Every mutating call carries a bearer
// token minted by the Token Manager.
package indexerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/retry"
	"github.com/blobscan/blob-indexer/token"
	"github.com/blobscan/blob-indexer/types"
)

// DefaultTimeout is the per-request timeout used for indexer HTTP calls.
const DefaultTimeout = 8 * time.Second

// TokenSource mints bearer credentials; satisfied by *token.Manager.
type TokenSource interface {
	GetToken() (token.Token, error)
}

// Client is a thin, shared, thread-safe HTTP client for the downstream
// indexer API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New constructs a Client against baseURL, authenticating mutating calls
// via tokens.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type indexRequestWire struct {
	Block        blockEntityWire       `json:"block"`
	Transactions []transactionEntityWire `json:"transactions"`
	Blobs        []blobEntityWire      `json:"blobs"`
}

type blockEntityWire struct {
	Number        uint64 `json:"number"`
	Hash          string `json:"hash"`
	Timestamp     string `json:"timestamp"`
	Slot          uint32 `json:"slot"`
	BlobGasUsed   string `json:"blobGasUsed"`
	ExcessBlobGas string `json:"excessBlobGas"`
}

type transactionEntityWire struct {
	Hash             string  `json:"hash"`
	From             string  `json:"from"`
	To               *string `json:"to,omitempty"`
	BlockNumber      uint64  `json:"blockNumber"`
	GasPrice         string  `json:"gasPrice"`
	MaxFeePerBlobGas string  `json:"maxFeePerBlobGas"`
}

type blobEntityWire struct {
	VersionedHash string `json:"versionedHash"`
	Commitment    string `json:"commitment"`
	Proof         string `json:"proof"`
	TxHash        string `json:"txHash"`
	Index         int    `json:"index"`
}

func toWire(req types.IndexRequest) indexRequestWire {
	wire := indexRequestWire{
		Block: blockEntityWire{
			Number:        req.Block.Number,
			Hash:          req.Block.Hash.Hex(),
			Timestamp:     req.Block.Timestamp.Hex(),
			Slot:          uint32(req.Block.Slot),
			BlobGasUsed:   req.Block.BlobGasUsed.Hex(),
			ExcessBlobGas: req.Block.ExcessBlobGas.Hex(),
		},
	}
	for _, tx := range req.Transactions {
		var to *string
		if tx.To != nil {
			s := tx.To.Hex()
			to = &s
		}
		wire.Transactions = append(wire.Transactions, transactionEntityWire{
			Hash:             tx.Hash.Hex(),
			From:             tx.From.Hex(),
			To:               to,
			BlockNumber:      tx.BlockNumber,
			GasPrice:         tx.GasPrice.Hex(),
			MaxFeePerBlobGas: tx.MaxFeePerBlobGas.Hex(),
		})
	}
	for _, b := range req.Blobs {
		wire.Blobs = append(wire.Blobs, blobEntityWire{
			VersionedHash: b.VersionedHash.Hex(),
			Commitment:    "0x" + hexEncode(b.Commitment),
			Proof:         "0x" + hexEncode(b.Proof),
			TxHash:        b.TxHash.Hex(),
			Index:         b.Index,
		})
	}
	return wire
}

// PutIndexRequest submits one IndexRequest to the downstream API via PUT
// block-txs-blobs.
func (c *Client) PutIndexRequest(ctx context.Context, req types.IndexRequest) error {
	return c.putJSON(ctx, "/api/indexer/block-txs-blobs", toWire(req))
}

// PutSlot advances the upper checkpoint via PUT slot.
func (c *Client) PutSlot(ctx context.Context, slot uint32) error {
	return c.putJSON(ctx, "/api/indexer/slot", struct {
		Slot uint32 `json:"slot"`
	}{Slot: slot})
}

// PutReorgedSlots marks slots as reorged via PUT reorged-slot.
func (c *Client) PutReorgedSlots(ctx context.Context, slots []uint32) error {
	return c.putJSON(ctx, "/api/indexer/reorged-slot", struct {
		Slots []uint32 `json:"slots"`
	}{Slots: slots})
}

// GetSlot fetches the last known slot via GET slot. 404 ("never synced")
// returns (nil, nil).
func (c *Client) GetSlot(ctx context.Context) (*uint32, error) {
	var wire struct {
		Slot uint32 `json:"slot"`
	}
	found, err := c.getJSON(ctx, "/api/indexer/slot", &wire)
	if err != nil || !found {
		return nil, err
	}
	return &wire.Slot, nil
}

type syncStateWire struct {
	LastFinalizedBlock       *uint32 `json:"lastFinalizedBlock,omitempty"`
	LastLowerSyncedSlot      *uint32 `json:"lastLowerSyncedSlot,omitempty"`
	LastUpperSyncedSlot      *uint32 `json:"lastUpperSyncedSlot,omitempty"`
	LastUpperSyncedBlockRoot *string `json:"lastUpperSyncedBlockRoot,omitempty"`
	LastUpperSyncedBlockSlot *uint32 `json:"lastUpperSyncedBlockSlot,omitempty"`
}

func fromSyncStateWire(w syncStateWire) types.SyncState {
	state := types.SyncState{
		LastFinalizedBlock:  w.LastFinalizedBlock,
		LastLowerSyncedSlot: w.LastLowerSyncedSlot,
		LastUpperSyncedSlot: w.LastUpperSyncedSlot,
	}
	if w.LastUpperSyncedBlockRoot != nil {
		h := types.HexToHash(*w.LastUpperSyncedBlockRoot)
		state.LastUpperSyncedBlockRoot = &h
	}
	if w.LastUpperSyncedBlockSlot != nil {
		s := types.Slot(*w.LastUpperSyncedBlockSlot)
		state.LastUpperSyncedBlockSlot = &s
	}
	return state
}

func toSyncStateWire(s types.SyncState) syncStateWire {
	wire := syncStateWire{
		LastFinalizedBlock:  s.LastFinalizedBlock,
		LastLowerSyncedSlot: s.LastLowerSyncedSlot,
		LastUpperSyncedSlot: s.LastUpperSyncedSlot,
	}
	if s.LastUpperSyncedBlockRoot != nil {
		h := s.LastUpperSyncedBlockRoot.Hex()
		wire.LastUpperSyncedBlockRoot = &h
	}
	if s.LastUpperSyncedBlockSlot != nil {
		v := uint32(*s.LastUpperSyncedBlockSlot)
		wire.LastUpperSyncedBlockSlot = &v
	}
	return wire
}

// GetSyncState fetches the current SyncState via GET sync-state.
func (c *Client) GetSyncState(ctx context.Context) (types.SyncState, error) {
	var wire syncStateWire
	if _, err := c.getJSON(ctx, "/api/indexer/sync-state", &wire); err != nil {
		return types.SyncState{}, err
	}
	return fromSyncStateWire(wire), nil
}

// PutSyncState writes a partial SyncState; nil fields are left unchanged
// server-side, which lets the historical and live tasks each update their
// own half of the state independently.
func (c *Client) PutSyncState(ctx context.Context, state types.SyncState) error {
	return c.putJSON(ctx, "/api/indexer/sync-state", toSyncStateWire(state))
}

func (c *Client) putJSON(ctx context.Context, path string, body interface{}) error {
	return c.authenticatedRequest(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, errors.Wrapf(err, "indexerclient: build request for %s", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, retry.Transient(errors.Wrapf(err, "indexerclient: request %s", c.baseURL+path))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return false, retry.Transient(errors.Newf("indexerclient: %s returned %d", c.baseURL+path, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return false, errors.Newf("indexerclient: %s returned unexpected status %d", c.baseURL+path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrapf(err, "indexerclient: decode response from %s", c.baseURL+path)
	}
	return true, nil
}

func (c *Client) authenticatedRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	tok, err := c.tokens.GetToken()
	if err != nil {
		return errors.Wrap(err, "indexerclient: acquire bearer token")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "indexerclient: encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "indexerclient: build request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.Raw)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Transient(errors.Wrapf(err, "indexerclient: request %s", c.baseURL+path))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return retry.Transient(errors.Newf("indexerclient: %s returned %d", c.baseURL+path, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return errors.Newf("indexerclient: %s returned %d", c.baseURL+path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "indexerclient: decode response from %s", c.baseURL+path)
		}
	}
	return nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}
