// Package anthropic provides a Completer implementation for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/modeladapter/usage"
)

const messagesPath = "/v1/messages"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for the Anthropic Messages API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Anthropic API.
// The baseURL should be "https://api.anthropic.com" (no trailing slash).
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}
	a.Name = model
	a.MaxTokens = 4096
	a.Headers = map[string]string{
		"anthropic-version": "2023-06-01",
	}

	return a
}

// Complete sends the groups to the Anthropic Messages API and returns the
// assistant's reply. System messages from every group are lifted, in order,
// into the request's system prompt.
func (a *Adapter) Complete(ctx context.Context, groups []message.Group) (message.Message, error) {
	req := a.buildRequest(groups)

	var resp apiResponse
	if err := a.PostJSON(ctx, messagesPath, req, &resp); err != nil {
		return message.Message{}, fmt.Errorf("anthropic: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})

	return parseResponse(resp), nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// --- response types ---

type apiResponse struct {
	Model      string       `json:"model"`
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(groups []message.Group) apiRequest {
	req := apiRequest{
		Model:     a.Name,
		MaxTokens: a.MaxTokens,
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.Temperature = &t
	}

	var system []string
	for _, m := range message.Flatten(groups) {
		if m.Role == role.System {
			system = append(system, m.Content)
			continue
		}
		appendMessage(&req.Messages, m)
	}
	req.System = strings.Join(system, "\n\n")

	return req
}

// appendMessage adds m as a text block, merging into the previous message
// when the roles match since the API requires alternating turns.
func appendMessage(msgs *[]apiMessage, m message.Message) {
	block := apiContent{Type: "text", Text: m.Content}
	msgRole := mapRole(m.Role)

	if n := len(*msgs); n > 0 && (*msgs)[n-1].Role == msgRole {
		(*msgs)[n-1].Content = append((*msgs)[n-1].Content, block)
		return
	}

	*msgs = append(*msgs, apiMessage{
		Role:    msgRole,
		Content: []apiContent{block},
	})
}

func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "assistant"
	}
	return "user"
}

func parseResponse(resp apiResponse) message.Message {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	msg := message.Assistant(b.String())
	msg.SetMeta("model", resp.Model)
	msg.SetMeta("stop_reason", resp.StopReason)

	return msg
}
