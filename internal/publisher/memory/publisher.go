// Package memory keeps announcements in process, encoded the way the Pub/Sub
// publisher encodes them.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// PublishedMessage is one accepted publish call. Data is the JSON body a
// broker would have received.
type PublishedMessage struct {
	ID      string
	Event   string
	Payload any
	Data    []byte
}

// Publisher records announcements for inspection.
type Publisher struct {
	mu   sync.Mutex
	sent []PublishedMessage
	fail error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every later Publish return err. A nil err clears it.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	p.fail = err
	p.mu.Unlock()
}

// Publish encodes payload and records it under a sequential id.
func (p *Publisher) Publish(_ context.Context, event string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", event, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	msg := PublishedMessage{
		ID:      fmt.Sprintf("memory-%d", len(p.sent)+1),
		Event:   event,
		Payload: payload,
		Data:    data,
	}
	p.sent = append(p.sent, msg)
	return msg.ID, nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.sent...)
}
