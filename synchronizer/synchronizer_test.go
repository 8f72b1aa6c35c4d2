package synchronizer

import (
	"context"
	"testing"

	"github.com/blobscan/blob-indexer/types"
)

type fakeHeaders struct{}

func (fakeHeaders) GetHeader(ctx context.Context, id types.BlockId) (*types.BeaconBlockHeader, error) {
	return &types.BeaconBlockHeader{Slot: id.Slot}, nil
}

type recordingRunner struct {
	calls [][2]types.Slot
}

func (r *recordingRunner) Run(ctx context.Context, from, to types.Slot) error {
	r.calls = append(r.calls, [2]types.Slot{from, to})
	return nil
}

type recordingCheckpointer struct {
	upperPuts []uint32
	states    []types.SyncState
}

func (c *recordingCheckpointer) PutSlot(ctx context.Context, slot uint32) error {
	c.upperPuts = append(c.upperPuts, slot)
	return nil
}

func (c *recordingCheckpointer) PutSyncState(ctx context.Context, state types.SyncState) error {
	c.states = append(c.states, state)
	return nil
}

// TestRun_ChecksPointAfterEachChunk verifies that with chunkSize=10, sync
// [0,25) performs three runs over [0,10) [10,20) [20,25), checkpointing
// 9, 19, 24.
func TestRun_ChecksPointAfterEachChunk(t *testing.T) {
	runner := &recordingRunner{}
	checkpoints := &recordingCheckpointer{}
	s := New(fakeHeaders{}, runner, checkpoints, Up, WithChunkSize(10))

	err := s.Run(context.Background(), types.SlotBlockId(0), types.SlotBlockId(25))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantCalls := [][2]types.Slot{{0, 10}, {10, 20}, {20, 25}}
	if len(runner.calls) != len(wantCalls) {
		t.Fatalf("got %d chunk runs, want %d", len(runner.calls), len(wantCalls))
	}
	for i, want := range wantCalls {
		if runner.calls[i] != want {
			t.Fatalf("chunk %d = %v, want %v", i, runner.calls[i], want)
		}
	}

	wantCheckpoints := []uint32{9, 19, 24}
	if len(checkpoints.upperPuts) != len(wantCheckpoints) {
		t.Fatalf("got %d checkpoints, want %d", len(checkpoints.upperPuts), len(wantCheckpoints))
	}
	for i, want := range wantCheckpoints {
		if checkpoints.upperPuts[i] != want {
			t.Fatalf("checkpoint %d = %d, want %d", i, checkpoints.upperPuts[i], want)
		}
	}
}

func TestRun_NoOpWhenFromEqualsTo(t *testing.T) {
	runner := &recordingRunner{}
	checkpoints := &recordingCheckpointer{}
	s := New(fakeHeaders{}, runner, checkpoints, Up)

	if err := s.Run(context.Background(), types.SlotBlockId(5), types.SlotBlockId(5)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatal("expected no chunk runs for from==to")
	}
}

func TestRun_InvertedRangeIsHardError(t *testing.T) {
	runner := &recordingRunner{}
	checkpoints := &recordingCheckpointer{}
	s := New(fakeHeaders{}, runner, checkpoints, Up)

	err := s.Run(context.Background(), types.SlotBlockId(10), types.SlotBlockId(5))
	if err == nil {
		t.Fatal("expected error for from > to")
	}
}

func TestRun_DownwardWritesLowerCheckpoint(t *testing.T) {
	runner := &recordingRunner{}
	checkpoints := &recordingCheckpointer{}
	s := New(fakeHeaders{}, runner, checkpoints, Down, WithChunkSize(10))

	if err := s.Run(context.Background(), types.SlotBlockId(25), types.SlotBlockId(0)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(checkpoints.states) != 3 {
		t.Fatalf("got %d lower checkpoints, want 3", len(checkpoints.states))
	}
	last := checkpoints.states[len(checkpoints.states)-1]
	if last.LastLowerSyncedSlot == nil || *last.LastLowerSyncedSlot != 0 {
		t.Fatalf("expected final lower checkpoint 0, got %+v", last)
	}
}
