// Package modeladapter defines the chat backend contract and shared plumbing
// for HTTP-based LLM adapters.
//
// It contains:
//   - [Completer] interface: ordered message groups in, one response message out
//   - embeddable [ModelAdapter] base struct with HTTP helpers, auth, and custom headers
//   - [RateLimitError] and [StatusError] describing failed API calls
//   - [Logged], a Completer wrapper that logs every call through log/slog
//   - [github.com/germanamz/promptchain/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// This package contains no provider-specific code; concrete adapters live in
// separate packages that import modeladapter. Nothing here retries a failed call.
package modeladapter
