package rangerunner

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/blobscan/blob-indexer/types"
)

type recordingProcessor struct {
	mu       sync.Mutex
	bySlot   map[types.Slot]int // order of visitation, per-shard
	failSlot map[types.Slot]bool
	seen     []types.Slot
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{failSlot: map[types.Slot]bool{}}
}

func (p *recordingProcessor) ProcessSlot(ctx context.Context, slot types.Slot) error {
	p.mu.Lock()
	p.seen = append(p.seen, slot)
	fail := p.failSlot[slot]
	p.mu.Unlock()
	if fail {
		return errForSlot(slot)
	}
	return nil
}

type slotError types.Slot

func (e slotError) Error() string { return "boom" }
func errForSlot(s types.Slot) error { return slotError(s) }

func TestRun_NoOp(t *testing.T) {
	p := newRecordingProcessor()
	r := New(p, 4)
	if err := r.Run(context.Background(), 10, 10); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.seen) != 0 {
		t.Fatal("expected no slots processed for from==to")
	}
}

func TestRun_InvertedRange(t *testing.T) {
	p := newRecordingProcessor()
	r := New(p, 4)
	if err := r.Run(context.Background(), 10, 5); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestRun_CoversEveryRow(t *testing.T) {
	p := newRecordingProcessor()
	r := New(p, 3)
	if err := r.Run(context.Background(), 0, 10); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := append([]types.Slot(nil), p.seen...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 10 {
		t.Fatalf("expected 10 slots visited, got %d", len(got))
	}
	for i, s := range got {
		if s != types.Slot(i) {
			t.Fatalf("expected slots 0..9 visited exactly once, got %v", got)
		}
	}
}

func TestRun_SiblingShardsContinueOnFailure(t *testing.T) {
	p := newRecordingProcessor()
	p.failSlot[2] = true // inside the first shard of a [0,9) / 3-way split: [0,3) [3,6) [6,9)
	r := New(p, 3)

	err := r.Run(context.Background(), 0, 9)
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	agg, ok := err.(*AggregateError)
	if !ok {
		t.Fatalf("expected *AggregateError, got %T", err)
	}
	if len(agg.Failures) != 1 {
		t.Fatalf("expected exactly 1 shard failure, got %d", len(agg.Failures))
	}

	seen := map[types.Slot]bool{}
	p.mu.Lock()
	for _, s := range p.seen {
		seen[s] = true
	}
	p.mu.Unlock()

	// The failing shard [0,3) stops at slot 2; siblings [3,6) and [6,9)
	// still ran to completion.
	for _, s := range []types.Slot{3, 4, 5, 6, 7, 8} {
		if !seen[s] {
			t.Fatalf("expected sibling shard slot %d to have been processed", s)
		}
	}
}
