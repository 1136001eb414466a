package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process message log. Message ids are zero-padded sequence
// numbers, so lexical and creation order agree.
type Memory struct {
	mu         sync.Mutex
	seq        uint64
	messages   []Message
	maxContent int
	now        func() time.Time
	closed     bool
}

// NewMemory creates an empty in-memory log. maxContent <= 0 uses MaxContentLength.
func NewMemory(maxContent int) *Memory {
	if maxContent <= 0 {
		maxContent = MaxContentLength
	}
	return &Memory{maxContent: maxContent, now: time.Now}
}

// WithClock overrides the timestamp source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Create appends a message.
func (m *Memory) Create(ctx context.Context, content string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, transportError(ErrNetwork, "%v", err)
	}
	if err := CheckContent(content, m.maxContent); err != nil {
		return Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Message{}, transportError(ErrNetwork, "memory transport closed")
	}
	m.seq++
	msg := Message{
		ID:        fmt.Sprintf("%020d", m.seq),
		Content:   content,
		Timestamp: m.now().UTC(),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

// List returns messages newest first.
func (m *Memory) List(ctx context.Context, limit int, before string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportError(ErrNetwork, "%v", err)
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, limit)
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if before != "" && msg.ID >= before {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// ListAll pages through the whole log.
func (m *Memory) ListAll(ctx context.Context, maxItems int) ([]Message, error) {
	return ListAllMessages(ctx, m, DefaultPageSize, maxItems)
}

// Edit replaces the content of an existing message.
func (m *Memory) Edit(ctx context.Context, id, content string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, transportError(ErrNetwork, "%v", err)
	}
	if err := CheckContent(content, m.maxContent); err != nil {
		return Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Content = content
			return m.messages[i], nil
		}
	}
	return Message{}, transportError(ErrNotFound, "message %s", id)
}

// Delete removes a message.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return transportError(ErrNetwork, "%v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return transportError(ErrNotFound, "message %s", id)
}

// TestConnection reports whether the log is open.
func (m *Memory) TestConnection(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && ctx.Err() == nil
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Close marks the log closed. Reads keep working.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
