// Package publish emits inventory change events to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes JSON events to Google Cloud Pub/Sub topics.
type PubSubPublisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubPublisher wraps an existing Pub/Sub client.
func NewPubSubPublisher(client *pubsub.Client) (*PubSubPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	return &PubSubPublisher{client: client, topics: make(map[string]*pubsub.Topic)}, nil
}

// Publish marshals the payload to JSON and publishes it, returning the
// server-assigned message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func (p *PubSubPublisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

// Stop flushes and releases all topic publishers.
func (p *PubSubPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
}
