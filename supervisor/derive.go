package supervisor

import "github.com/blobscan/blob-indexer/types"

// DeriveInitialSlots computes the Historical Task's upper bound and the
// Live Task's starting slot from the current SyncState. When the server has
// never synced (all fields nil), both tasks start at forkSlot.
func DeriveInitialSlots(state types.SyncState, forkSlot types.Slot) (historicalLastKnownLower types.Slot, liveStartSlot types.Slot) {
	historicalLastKnownLower = forkSlot
	if state.LastLowerSyncedSlot != nil {
		historicalLastKnownLower = types.Slot(*state.LastLowerSyncedSlot)
	}

	liveStartSlot = forkSlot
	if state.LastUpperSyncedSlot != nil {
		liveStartSlot = types.Slot(*state.LastUpperSyncedSlot) + 1
	}

	return historicalLastKnownLower, liveStartSlot
}
