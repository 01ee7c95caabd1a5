package results

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps each session's list as one JSON blob, the same shape the
// browser keeps under StorageKey.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (m *MemoryStore) key(sessionID string) string {
	return sessionID + ":" + StorageKey
}

func (m *MemoryStore) ReadAll(_ context.Context, sessionID string) ([]Record, error) {
	m.mu.RLock()
	raw, ok := m.blobs[m.key(sessionID)]
	m.mu.RUnlock()
	if !ok {
		return []Record{}, nil
	}
	return decodeList(raw)
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(sessionID)
	list := []Record{}
	if raw, ok := m.blobs[k]; ok {
		var err error
		if list, err = decodeList(raw); err != nil {
			return err
		}
	}
	for _, r := range list {
		if r.Module == rec.Module {
			return ErrDuplicate
		}
	}
	raw, err := json.Marshal(append(list, rec))
	if err != nil {
		return err
	}
	m.blobs[k] = raw
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.blobs, m.key(sessionID))
	m.mu.Unlock()
	return nil
}

// SetRaw stores raw bytes as a session's list, valid or not.
func (m *MemoryStore) SetRaw(sessionID string, raw []byte) {
	m.mu.Lock()
	m.blobs[m.key(sessionID)] = append([]byte(nil), raw...)
	m.mu.Unlock()
}

func decodeList(raw []byte) ([]Record, error) {
	var list []Record
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if list == nil {
		list = []Record{}
	}
	return list, nil
}
