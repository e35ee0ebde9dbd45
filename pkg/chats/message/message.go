// Package message defines the Message and Group types used in LLM conversations.
package message

import (
	"maps"

	"github.com/germanamz/promptchain/pkg/chats/role"
)

// Message represents a single message in a conversation.
// It is a value type that copies cheaply; Clone also copies Metadata.
type Message struct {
	Role     role.Role
	Content  string
	Metadata map[string]any
}

// New creates a message with the given role and text content.
func New(r role.Role, content string) Message {
	return Message{Role: r, Content: content}
}

// System creates a system message.
func System(content string) Message { return New(role.System, content) }

// User creates a user message.
func User(content string) Message { return New(role.User, content) }

// Assistant creates an assistant message.
func Assistant(content string) Message { return New(role.Assistant, content) }

// Clone returns a copy of m that shares no mutable state with it.
func (m Message) Clone() Message {
	m.Metadata = maps.Clone(m.Metadata)
	return m
}

// SetMeta sets a metadata key-value pair on the message.
// It initializes the Metadata map if nil.
func (m *Message) SetMeta(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// GetMeta retrieves a metadata value by key.
func (m Message) GetMeta(key string) (any, bool) {
	if m.Metadata == nil {
		return nil, false
	}
	v, ok := m.Metadata[key]
	return v, ok
}

// Group is an ordered block of messages that a backend receives as one unit
// (a header, the history, a sandwich, or the current turn). A nil Group and an
// empty Group are equivalent.
type Group []Message

// Len returns the number of messages in the group.
func (g Group) Len() int { return len(g) }

// Clone returns a deep copy of the group. Cloning an empty group yields a
// non-nil empty group.
func (g Group) Clone() Group {
	out := make(Group, len(g))
	for i, m := range g {
		out[i] = m.Clone()
	}
	return out
}

// Flatten concatenates groups in order. It is intended for backends whose
// wire format has no notion of groups.
func Flatten(groups []Group) []Message {
	n := 0
	for _, g := range groups {
		n += len(g)
	}

	out := make([]Message, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}

	return out
}

// Count returns the total number of messages across groups.
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}
