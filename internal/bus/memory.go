package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tellatale/engine/pkg/models"
)

// MemoryBus is an in-process Bus for tests and single-binary development.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan models.ProgressFrame]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan models.ProgressFrame]struct{})}
}

func (b *MemoryBus) Ping(context.Context) error { return nil }

func (b *MemoryBus) Publish(_ context.Context, projectID uuid.UUID, frame models.ProgressFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[ChannelName(projectID)] {
		select {
		case ch <- frame:
		default:
			// Drop for slow subscribers, matching the Redis backend.
		}
	}
}

func (b *MemoryBus) Subscribe(_ context.Context, projectID uuid.UUID) (<-chan models.ProgressFrame, func(), error) {
	ch := make(chan models.ProgressFrame, subscriberBuffer)
	topic := ChannelName(projectID)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan models.ProgressFrame]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], ch)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

var _ Bus = (*MemoryBus)(nil)
