// Package providers groups the concrete chat backends.
//
// Each sub-package implements [github.com/germanamz/promptchain/pkg/modeladapter.Completer]:
//   - [github.com/germanamz/promptchain/pkg/providers/openai]: OpenAI Chat Completions API
//   - [github.com/germanamz/promptchain/pkg/providers/anthropic]: Anthropic Messages API
//   - [github.com/germanamz/promptchain/pkg/providers/langchain]: any langchaingo model (Ollama by default)
//   - [github.com/germanamz/promptchain/pkg/providers/lorem]: offline lorem ipsum generator
package providers
