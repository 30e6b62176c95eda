// Package store persists per-channel thresholds across restarts.
package store

import (
	"context"
	"sort"
	"sync"
)

// Store persists per-channel thresholds.
type Store interface {
	// Load returns the stored threshold of a channel. ok is false when the
	// channel has never been saved.
	Load(ctx context.Context, channel int) (threshold int, ok bool, err error)

	// Save stores a threshold, replacing any previous value.
	Save(ctx context.Context, channel, threshold int) error

	// All returns every stored threshold keyed by channel.
	All(ctx context.Context) (map[int]int, error)

	// Close releases the underlying resources.
	Close() error
}

// LoadAll returns the stored thresholds for the given channels. Channels
// without a stored value are absent from the result.
func LoadAll(ctx context.Context, s Store, channels []int) (map[int]int, error) {
	out := make(map[int]int, len(channels))
	for _, ch := range channels {
		v, ok, err := s.Load(ctx, ch)
		if err != nil {
			return nil, err
		}
		if ok {
			out[ch] = v
		}
	}
	return out, nil
}

// SortedChannels returns the keys of m in ascending order.
func SortedChannels(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// MemoryStore keeps thresholds in memory. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[int]int

	// SaveError, if set, will be returned by Save.
	SaveError error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[int]int)}
}

// Load returns the stored threshold of a channel.
func (m *MemoryStore) Load(_ context.Context, channel int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[channel]
	return v, ok, nil
}

// Save stores a threshold.
func (m *MemoryStore) Save(_ context.Context, channel, threshold int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.values[channel] = threshold
	return nil
}

// All returns a copy of every stored threshold.
func (m *MemoryStore) All(_ context.Context) (map[int]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]int, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
