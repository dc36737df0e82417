package mailer

import (
	"context"
	"sync"
)

// MockSender records messages instead of sending them. Recipients listed in
// FailFor get the configured error back.
type MockSender struct {
	mu      sync.Mutex
	sent    []Message
	FailFor map[string]error
}

// NewMockSender creates a new MockSender
func NewMockSender() *MockSender {
	return &MockSender{FailFor: map[string]error{}}
}

// Send records msg or returns the configured failure
func (m *MockSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailFor[msg.To]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages
func (m *MockSender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
