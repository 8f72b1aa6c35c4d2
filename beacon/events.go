package beacon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	sse "github.com/r3labs/sse/v2"

	"github.com/blobscan/blob-indexer/types"
)

// EventConnectTimeout is the SSE connect timeout. There is deliberately no
// read timeout: events are sparse.
const EventConnectTimeout = 32 * time.Second

// EventKind tags the three topics this system subscribes to.
type EventKind string

const (
	EventHead                EventKind = "head"
	EventFinalizedCheckpoint EventKind = "finalized_checkpoint"
	EventChainReorg          EventKind = "chain_reorg"
)

// ErrUnexpectedEvent is returned for any SSE event whose topic the system
// did not subscribe to; treated as fatal.
var ErrUnexpectedEvent = errors.New("beacon: unexpected SSE event topic")

// ErrStreamEnded marks a graceful server-initiated stream close. Callers
// reconnect on seeing it.
var ErrStreamEnded = errors.New("beacon: stream ended")

// HeadEvent is the payload of a "head" SSE event.
type HeadEvent struct {
	Slot  types.Slot
	Block types.Hash
}

// ChainReorgEvent is the payload of a "chain_reorg" SSE event.
type ChainReorgEvent struct {
	Slot    types.Slot
	OldHead types.Hash
	Depth   uint64
}

// FinalizedCheckpointEvent is the payload of a "finalized_checkpoint" SSE
// event.
type FinalizedCheckpointEvent struct {
	Block types.Hash
}

// Event is a decoded SSE event, tagged by Kind with exactly one populated
// payload field.
type Event struct {
	Kind       EventKind
	Head       *HeadEvent
	ChainReorg *ChainReorgEvent
	Finalized  *FinalizedCheckpointEvent
}

type headWire struct {
	Slot  string `json:"slot"`
	Block string `json:"block"`
}

type chainReorgWire struct {
	Slot    string `json:"slot"`
	OldHead string `json:"old_head_block"`
	Depth   string `json:"depth"`
}

type finalizedCheckpointWire struct {
	Block string `json:"block"`
}

// SubscribeEvents opens the beacon SSE stream for topics via GET v1/events
// and delivers decoded events on the returned channel until ctx is
// cancelled or a fatal stream error occurs, reported on errc. The channel
// and errc are both closed when the subscription ends.
func (c *Client) SubscribeEvents(ctx context.Context, topics []string) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errc := make(chan error, 1)

	client := sse.NewClient(c.EventsURL(topics))
	client.Connection.Transport = &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{Timeout: EventConnectTimeout}).DialContext,
	}

	rawEvents := make(chan *sse.Event)

	go func() {
		defer close(events)
		defer close(errc)

		subErr := client.SubscribeChanRawWithContext(ctx, rawEvents)
		if subErr != nil {
			errc <- errors.Wrap(subErr, "beacon: subscribe to event stream")
			return
		}

		for {
			select {
			case <-ctx.Done():
				client.Unsubscribe(rawEvents)
				return
			case raw, ok := <-rawEvents:
				if !ok {
					errc <- ErrStreamEnded
					return
				}
				if raw == nil {
					continue
				}
				ev, err := decodeEvent(string(raw.Event), raw.Data)
				if err != nil {
					errc <- err
					return
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					client.Unsubscribe(rawEvents)
					return
				}
			}
		}
	}()

	return events, errc
}

func decodeEvent(topic string, data []byte) (Event, error) {
	switch EventKind(topic) {
	case EventHead:
		var wire headWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Event{}, errors.Wrap(err, "beacon: decode head event")
		}
		slot, err := strconv.ParseUint(wire.Slot, 10, 32)
		if err != nil {
			return Event{}, errors.Wrapf(err, "beacon: invalid head slot %q", wire.Slot)
		}
		return Event{Kind: EventHead, Head: &HeadEvent{
			Slot:  types.Slot(slot),
			Block: types.HexToHash(wire.Block),
		}}, nil

	case EventChainReorg:
		var wire chainReorgWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Event{}, errors.Wrap(err, "beacon: decode chain_reorg event")
		}
		slot, err := strconv.ParseUint(wire.Slot, 10, 32)
		if err != nil {
			return Event{}, errors.Wrapf(err, "beacon: invalid chain_reorg slot %q", wire.Slot)
		}
		depth, err := strconv.ParseUint(wire.Depth, 10, 64)
		if err != nil {
			return Event{}, errors.Wrapf(err, "beacon: invalid chain_reorg depth %q", wire.Depth)
		}
		return Event{Kind: EventChainReorg, ChainReorg: &ChainReorgEvent{
			Slot:    types.Slot(slot),
			OldHead: types.HexToHash(wire.OldHead),
			Depth:   depth,
		}}, nil

	case EventFinalizedCheckpoint:
		var wire finalizedCheckpointWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Event{}, errors.Wrap(err, "beacon: decode finalized_checkpoint event")
		}
		return Event{Kind: EventFinalizedCheckpoint, Finalized: &FinalizedCheckpointEvent{
			Block: types.HexToHash(wire.Block),
		}}, nil

	default:
		return Event{}, errors.Wrapf(ErrUnexpectedEvent, "topic %q", topic)
	}
}
