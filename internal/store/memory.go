package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a process-local store. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	byHash   map[string]Record
	byKey    map[[2]string]string
	bySeedID map[string]map[int64]string
}

func NewMemory() *Memory {
	return &Memory{
		byHash:   map[string]Record{},
		byKey:    map[[2]string]string{},
		bySeedID: map[string]map[int64]string{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) SaveTorrent(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, dupHash := m.byHash[r.Hash]
	_, dupKey := m.byKey[[2]string{r.ContentKey, r.Site}]
	dupSeed := false
	if r.SeedID != 0 {
		_, dupSeed = m.bySeedID[r.Site][r.SeedID]
	}
	if dupHash || dupKey || dupSeed {
		return fmt.Errorf("%w: [%s-%d] %s", ErrConflict, r.Site, r.SeedID, r.Name)
	}

	m.byHash[r.Hash] = r
	m.byKey[[2]string{r.ContentKey, r.Site}] = r.Hash
	if r.SeedID != 0 {
		if m.bySeedID[r.Site] == nil {
			m.bySeedID[r.Site] = map[int64]string{}
		}
		m.bySeedID[r.Site][r.SeedID] = r.Hash
	}
	return nil
}

func (m *Memory) GetTorrent(_ context.Context, hash string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byHash[hash]
	return r, ok, nil
}

func (m *Memory) LookupHashes(_ context.Context, hashes []string) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Record, len(hashes))
	for _, h := range hashes {
		if r, ok := m.byHash[h]; ok {
			out[h] = r
		}
	}
	return out, nil
}

func (m *Memory) HasSeed(_ context.Context, site string, seedID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bySeedID[site][seedID]
	return ok, nil
}

func (m *Memory) ListTorrents(context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.byHash))
	for _, r := range m.byHash {
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (m *Memory) ListByContentKey(_ context.Context, key string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.byHash {
		if r.ContentKey == key {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}
