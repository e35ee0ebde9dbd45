// Package chat provides an in-memory, append-only conversation history.
package chat

import (
	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
)

// Chat is an ordered, append-only log of messages. The zero value is ready
// to use. Chat is not safe for concurrent use; callers must synchronize
// externally.
type Chat struct {
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	c := &Chat{}
	c.Append(msgs...)
	return c
}

// Append adds one or more messages to the end of the conversation.
func (c *Chat) Append(msgs ...message.Message) {
	for _, m := range msgs {
		c.messages = append(c.messages, m.Clone())
	}
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	return len(c.messages)
}

// At returns a copy of the message at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) message.Message {
	return c.messages[index].Clone()
}

// Last returns the most recent message and true, or a zero Message and false
// if the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// Messages returns a copy of all messages in the conversation.
func (c *Chat) Messages() []message.Message {
	cp := make([]message.Message, len(c.messages))
	for i, m := range c.messages {
		cp[i] = m.Clone()
	}
	return cp
}

// Each iterates over messages, calling fn for each one. If fn returns false,
// iteration stops early.
func (c *Chat) Each(fn func(int, message.Message) bool) {
	for i, m := range c.messages {
		if !fn(i, m) {
			return
		}
	}
}

// ByRole returns all messages with the given role.
func (c *Chat) ByRole(r role.Role) []message.Message {
	var out []message.Message
	for _, m := range c.messages {
		if m.Role == r {
			out = append(out, m.Clone())
		}
	}
	return out
}

// SystemPrompt returns the content of the first system message, or an empty
// string if there is none.
func (c *Chat) SystemPrompt() string {
	for _, m := range c.messages {
		if m.Role == role.System {
			return m.Content
		}
	}
	return ""
}
