package transport

import (
	"context"
	"sync"
)

// Memory implements Transport in process memory. Used by tests and as a
// single-station development mode; it still honors the whole-document
// replace protocol.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
	subs map[string]map[chan []byte]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string][]byte),
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

func (m *Memory) Write(ctx context.Context, path string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = stored
	for ch := range m.subs[path] {
		pushSnapshot(ch, stored)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	ch := make(chan []byte, snapshotBuffer)

	m.mu.Lock()
	initial := m.docs[path]
	if m.subs[path] == nil {
		m.subs[path] = make(map[chan []byte]struct{})
	}
	m.subs[path][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if set, ok := m.subs[path]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(m.subs, path)
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return &Subscription{Initial: initial, Updates: ch}, nil
}
