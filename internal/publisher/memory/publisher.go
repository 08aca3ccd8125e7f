// Package memory is the in-process change publisher selected with
// notify.pubsub.backend=memory. It encodes messages exactly as the broker
// would receive them, so local runs and tests can inspect the wire payload.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded publish: the JSON body and its attributes.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Publisher keeps every message it is given. An optional limit keeps only
// the most recent ones.
type Publisher struct {
	mu       sync.Mutex
	seq      int
	limit    int
	messages []Message
}

// New returns a publisher that keeps the last limit messages, or all of them
// when limit <= 0.
func New(limit int) *Publisher {
	return &Publisher{limit: limit}
}

// Publish encodes payload and records it with the topic attribute the
// Pub/Sub publisher would set.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{Data: data}
	if topic != "" {
		msg.Attributes = map[string]string{"openfeeder_topic": topic}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	msg.ID = fmt.Sprintf("mem-%d", p.seq)
	p.messages = append(p.messages, msg)
	if p.limit > 0 && len(p.messages) > p.limit {
		p.messages = p.messages[len(p.messages)-p.limit:]
	}
	return msg.ID, nil
}

// Messages returns a copy of the retained messages, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// Decode unmarshals the i-th retained message into v.
func (p *Publisher) Decode(i int, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.messages) {
		return fmt.Errorf("message %d out of range (have %d)", i, len(p.messages))
	}
	return json.Unmarshal(p.messages[i].Data, v)
}
