package billing

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// InvoiceLocks serialises read-allocate-write sequences per invoice within
// one process. Keys are locked in ascending order, so two callers locking
// overlapping sets cannot deadlock.
type InvoiceLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewInvoiceLocks creates an empty lock table
func NewInvoiceLocks() *InvoiceLocks {
	return &InvoiceLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until every key is held and returns the function that
// releases them. Duplicate keys are locked once.
func (l *InvoiceLocks) Lock(keys ...uuid.UUID) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	sorted = slices.Compact(sorted)

	held := make([]*lockEntry, 0, len(sorted))
	for _, key := range sorted {
		entry := l.acquire(key)
		entry.mu.Lock()
		held = append(held, entry)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(sorted[i])
			}
		})
	}
}

// Len returns the number of keys currently locked or waited on
func (l *InvoiceLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *InvoiceLocks) acquire(key uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *InvoiceLocks) release(key uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}
