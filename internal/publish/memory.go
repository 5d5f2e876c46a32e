package publish

import (
	"context"
	"fmt"
	"sync"
)

// Message captures one publish call.
type Message struct {
	Topic   string
	Payload any
}

// MemoryPublisher records published events for inspection in tests.
type MemoryPublisher struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemoryPublisher returns an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *MemoryPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
