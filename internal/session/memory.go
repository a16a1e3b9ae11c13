package session

import (
	"context"
	"sync"
)

// MemoryPartition is an in-process storage partition with its own change
// bus. Each Open call returns a new handle, the equivalent of a browser tab.
type MemoryPartition struct {
	mu   sync.Mutex
	data map[string]string
	subs map[*subscription]struct{}
}

type subscription struct {
	owner *memoryStorage
	ch    chan Change
	done  <-chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewMemoryPartition returns an empty partition
func NewMemoryPartition() *MemoryPartition {
	return &MemoryPartition{
		data: make(map[string]string),
		subs: make(map[*subscription]struct{}),
	}
}

// Open returns a new handle on the partition
func (p *MemoryPartition) Open() Storage {
	return &memoryStorage{p: p}
}

// Clear removes every key and announces a cleared partition to all handles
func (p *MemoryPartition) Clear() {
	p.mu.Lock()
	p.data = make(map[string]string)
	p.mu.Unlock()
	p.notify(nil, Change{})
}

// notify delivers c to every subscription not owned by origin
func (p *MemoryPartition) notify(origin *memoryStorage, c Change) {
	p.mu.Lock()
	targets := make([]*subscription, 0, len(p.subs))
	for s := range p.subs {
		if s.owner != origin {
			targets = append(targets, s)
		}
	}
	p.mu.Unlock()

	for _, s := range targets {
		s.deliver(c)
	}
}

func (s *subscription) deliver(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- c:
	case <-s.done:
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type memoryStorage struct {
	p *MemoryPartition
}

func (m *memoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	v, ok := m.p.data[key]
	return v, ok, nil
}

func (m *memoryStorage) Set(_ context.Context, key, value string) error {
	m.p.mu.Lock()
	m.p.data[key] = value
	m.p.mu.Unlock()
	m.p.notify(m, Change{Key: key, Value: value})
	return nil
}

func (m *memoryStorage) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	m.p.mu.Lock()
	if _, ok := m.p.data[key]; ok {
		m.p.mu.Unlock()
		return false, nil
	}
	m.p.data[key] = value
	m.p.mu.Unlock()
	m.p.notify(m, Change{Key: key, Value: value})
	return true, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.p.mu.Lock()
	_, existed := m.p.data[key]
	delete(m.p.data, key)
	m.p.mu.Unlock()
	if existed {
		m.p.notify(m, Change{Key: key, Deleted: true})
	}
	return nil
}

func (m *memoryStorage) Subscribe(ctx context.Context) (<-chan Change, error) {
	s := &subscription{owner: m, ch: make(chan Change, 64), done: ctx.Done()}
	m.p.mu.Lock()
	m.p.subs[s] = struct{}{}
	m.p.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.p.mu.Lock()
		delete(m.p.subs, s)
		m.p.mu.Unlock()
		s.close()
	}()
	return s.ch, nil
}
