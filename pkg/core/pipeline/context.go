package pipeline

import (
	"sync"

	"github.com/sherpa-ai/sherpa/pkg/core/types"
)

// Conversation is the append-only message history for one session. The system
// prompt is fixed at creation; user and assistant turns are appended as they
// complete.
type Conversation struct {
	mu       sync.Mutex
	messages []types.Message
}

// NewConversation creates a history seeded with the system prompt.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{
		messages: []types.Message{{Role: types.RoleSystem, Content: systemPrompt}},
	}
}

// Append records a completed turn from its context frame.
func (c *Conversation) Append(m *ContextMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, types.Message{Role: m.Role, Content: m.Content})
}

// AppendUser records a completed user turn.
func (c *Conversation) AppendUser(text string) {
	c.Append(&ContextMessage{Role: types.RoleUser, Content: text})
}

// AppendAssistant records a completed assistant turn.
func (c *Conversation) AppendAssistant(text string) {
	c.Append(&ContextMessage{Role: types.RoleAssistant, Content: text})
}

// Messages returns a copy of the history in order.
func (c *Conversation) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages, including the system prompt.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
