// Package chats provides the message model shared by prompts, backends, and
// history stores.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/promptchain/pkg/chats/role]: conversation roles (system, user, assistant, tool)
//   - [github.com/germanamz/promptchain/pkg/chats/message]: role-tagged text messages and message groups
//   - [github.com/germanamz/promptchain/pkg/chats/chat]: in-memory, append-only conversation history
//
// No provider or API code is included; chats is a foundation layer
// that backends and chains build on.
package chats
