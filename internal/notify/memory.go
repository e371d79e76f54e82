package notify

import (
	"context"
	"sync"
)

// Message is one captured notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// MemoryNotifier records notifications instead of delivering them. Used
// in tests and in deployments without an SMTP relay configured.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []Message

	// FailWith, when set, is returned by Send to simulate delivery
	// failure.
	FailWith error
}

var _ Notifier = (*MemoryNotifier)(nil)

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailWith != nil {
		return n.FailWith
	}
	n.messages = append(n.messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything sent so far.
func (n *MemoryNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}
