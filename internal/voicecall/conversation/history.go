// Package conversation owns the running dialogue of a call and turns caller
// utterances into assistant replies through a completion provider.
package conversation

import "sync"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// History is the ordered dialogue for one call. The first entry is always the
// system persona.
type History struct {
	mu       sync.Mutex
	persona  string
	messages []Message
}

func NewHistory(persona string) *History {
	return &History{
		persona:  persona,
		messages: []Message{{Role: RoleSystem, Content: persona}},
	}
}

func (h *History) Append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
}

// Messages returns a copy safe to hand to a provider.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Reset drops everything but the persona.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = []Message{{Role: RoleSystem, Content: h.persona}}
}
