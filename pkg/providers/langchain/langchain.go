// Package langchain adapts any langchaingo chat model to the Completer
// interface.
package langchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaURL is used by NewOllama when serverURL is empty.
const DefaultOllamaURL = "http://localhost:11434"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer on top of an llms.Model.
type Adapter struct {
	Model       llms.Model
	Name        string
	Temperature float64
	MaxTokens   int
}

// New wraps model. name is only recorded in response metadata and passed
// as the model option when non-empty.
func New(model llms.Model, name string) *Adapter {
	return &Adapter{Model: model, Name: name}
}

// NewOllama creates an Adapter backed by a local Ollama server.
func NewOllama(serverURL, model string) (*Adapter, error) {
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}

	opts := []ollama.Option{ollama.WithServerURL(serverURL)}
	if model != "" {
		opts = append(opts, ollama.WithModel(model))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: ollama: %w", err)
	}

	return New(llm, model), nil
}

// Complete flattens the groups into langchaingo messages and returns the first
// choice.
func (a *Adapter) Complete(ctx context.Context, groups []message.Group) (message.Message, error) {
	resp, err := a.Model.GenerateContent(ctx, toMessageContent(groups), a.callOptions()...)
	if err != nil {
		return message.Message{}, fmt.Errorf("langchain: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return message.Message{}, errors.New("langchain: empty choices in response")
	}

	choice := resp.Choices[0]

	msg := message.Assistant(choice.Content)
	if a.Name != "" {
		msg.SetMeta("model", a.Name)
	}
	if choice.StopReason != "" {
		msg.SetMeta("stop_reason", choice.StopReason)
	}

	return msg, nil
}

func (a *Adapter) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if a.Name != "" {
		opts = append(opts, llms.WithModel(a.Name))
	}
	if a.Temperature != 0 {
		opts = append(opts, llms.WithTemperature(a.Temperature))
	}
	if a.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.MaxTokens))
	}
	return opts
}

func toMessageContent(groups []message.Group) []llms.MessageContent {
	flat := message.Flatten(groups)
	out := make([]llms.MessageContent, 0, len(flat))

	for _, m := range flat {
		out = append(out, llms.MessageContent{
			Role:  mapRole(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}

	return out
}

func mapRole(r role.Role) llms.ChatMessageType {
	switch r {
	case role.System:
		return llms.ChatMessageTypeSystem
	case role.Assistant:
		return llms.ChatMessageTypeAI
	case role.Tool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}
