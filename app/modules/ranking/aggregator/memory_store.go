package rankingaggregator

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[EntryKey]Entry
	history []HistoryEntry
	nextID  int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[EntryKey]Entry)}
}

func (s *MemoryStore) GetEntry(_ context.Context, key EntryKey) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (s *MemoryStore) CompareAndSwapEntry(_ context.Context, next *Entry, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[next.Key]
	switch {
	case !ok && expectedVersion != 0:
		return ErrConcurrentUpdateConflict
	case ok && current.Version != expectedVersion:
		return ErrConcurrentUpdateConflict
	}
	s.entries[next.Key] = *next
	return nil
}

func (s *MemoryStore) ListSlice(_ context.Context, slice SliceKey) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for k, e := range s.entries {
		if k.Slice() == slice {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, entry *HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	s.history = append(s.history, *entry)
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, q HistoryQuery, afterID int64, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []HistoryEntry
	for _, h := range s.history {
		if h.ID <= afterID || !q.Matches(h) {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CountMatchesBetween(_ context.Context, from, to time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, h := range s.history {
		if !h.PlayedAt.Before(from) && h.PlayedAt.Before(to) {
			out[h.PlayerID]++
		}
	}
	return out, nil
}

// Batch returns a view of s whose writes stay invisible to s until Commit.
// Reads through the batch see its own pending writes. A batch is
// single-use: discard it to roll back.
func (s *MemoryStore) Batch() *MemoryBatch {
	return &MemoryBatch{
		store:   s,
		entries: make(map[EntryKey]Entry),
		base:    make(map[EntryKey]int64),
	}
}

// MemoryBatch stages entry and history writes against a MemoryStore.
type MemoryBatch struct {
	store *MemoryStore

	mu      sync.Mutex
	entries map[EntryKey]Entry
	// base is the committed version each staged key was written over.
	base    map[EntryKey]int64
	history []HistoryEntry
}

var _ Store = (*MemoryBatch)(nil)

func (b *MemoryBatch) GetEntry(ctx context.Context, key EntryKey) (*Entry, error) {
	b.mu.Lock()
	e, ok := b.entries[key]
	b.mu.Unlock()
	if ok {
		return &e, nil
	}
	return b.store.GetEntry(ctx, key)
}

func (b *MemoryBatch) CompareAndSwapEntry(_ context.Context, next *Entry, expectedVersion int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, staged := b.entries[next.Key]
	if !staged {
		b.store.mu.RLock()
		committed, ok := b.store.entries[next.Key]
		b.store.mu.RUnlock()
		current = Entry{}
		if ok {
			current = committed
		}
	}
	if current.Version != expectedVersion {
		return ErrConcurrentUpdateConflict
	}
	if !staged {
		b.base[next.Key] = current.Version
	}
	b.entries[next.Key] = *next
	return nil
}

// ListSlice returns the committed slice overlaid with staged entries.
func (b *MemoryBatch) ListSlice(ctx context.Context, slice SliceKey) ([]Entry, error) {
	committed, err := b.store.ListSlice(ctx, slice)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, len(committed))
	for _, e := range committed {
		if _, ok := b.entries[e.Key]; !ok {
			out = append(out, e)
		}
	}
	for k, e := range b.entries {
		if k.Slice() == slice {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendHistory stages entry. Its ID is assigned on Commit.
func (b *MemoryBatch) AppendHistory(_ context.Context, entry *HistoryEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, *entry)
	return nil
}

func (b *MemoryBatch) ListHistory(ctx context.Context, q HistoryQuery, afterID int64, limit int) ([]HistoryEntry, error) {
	return b.store.ListHistory(ctx, q, afterID, limit)
}

func (b *MemoryBatch) CountMatchesBetween(ctx context.Context, from, to time.Time) (map[string]int, error) {
	return b.store.CountMatchesBetween(ctx, from, to)
}

// Commit writes every staged change to the store at once. It fails with
// ErrConcurrentUpdateConflict, writing nothing, when any staged key changed
// in the store after the batch first wrote it.
func (b *MemoryBatch) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range b.base {
		if s.entries[key].Version != version {
			return ErrConcurrentUpdateConflict
		}
	}
	for key, e := range b.entries {
		s.entries[key] = e
	}
	for _, h := range b.history {
		s.nextID++
		h.ID = s.nextID
		s.history = append(s.history, h)
	}

	b.entries = make(map[EntryKey]Entry)
	b.base = make(map[EntryKey]int64)
	b.history = nil
	return nil
}
