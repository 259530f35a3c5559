package auction

import (
	"sync"

	"github.com/google/uuid"
)

// LockTable serializes work per auction within this process. Entries are
// refcounted so the table does not grow with every auction ever touched.
type LockTable struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLockTable builds an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock acquires the entry for the auction and returns its release func.
// Callers must invoke the release exactly once, typically via defer.
func (t *LockTable) Lock(auctionID uuid.UUID) func() {
	t.mu.Lock()
	entry, ok := t.entries[auctionID]
	if !ok {
		entry = &lockEntry{}
		t.entries[auctionID] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, auctionID)
		}
		t.mu.Unlock()
	}
}

// Len reports how many auctions currently hold an entry.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
