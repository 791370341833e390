package chat

import (
	"strings"
	"time"
)

// Transcript is the ordered chat history. The first entry is always the seeded
// welcome message. It is not safe for concurrent use; Session serialises access.
type Transcript struct {
	messages []Message
}

func NewTranscript(welcome string, at time.Time) *Transcript {
	return &Transcript{
		messages: []Message{{Role: RoleAssistant, Content: welcome, Timestamp: at}},
	}
}

// Append adds m to the end. User messages must carry non-blank content.
func (t *Transcript) Append(m Message) error {
	if m.Role == RoleUser && strings.TrimSpace(m.Content) == "" {
		return ErrEmptyMessage
	}
	t.push(m)
	return nil
}

// push appends without validation. Used for assistant replies, which may be any text.
func (t *Transcript) push(m Message) {
	t.messages = append(t.messages, m)
}

// All returns a copy of every message in chronological order.
func (t *Transcript) All() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int { return len(t.messages) }
