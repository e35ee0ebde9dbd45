// Package chain assembles a prompt, optional fixed messages, and conversation
// history into ordered message groups, sends them to a chat backend, and
// records the exchange.
//
// A Chain is configured once and run many times:
//
//	c := chain.New(tmpl, backend).
//		WithMemory(history).
//		WithHeaderPrompts(message.System("You are helpful"))
//
//	reply, err := c.RunString(ctx, "Hi")
//
// Every run renders the prompt, orders the groups as
// [header?, history, sandwich?, turn], calls the backend once, and, on
// success only, appends the turn's non-system messages followed by the reply
// to the attached history. Nothing is retried.
//
// A Chain is not safe for concurrent use. It mutates the prompt's accumulated
// values and the attached history on every run, so callers must serialize
// runs on the same instance.
package chain

import (
	"context"
	"log/slog"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/prompt"
)

// Prompt accumulates input values and renders them into the current turn's
// messages. *prompt.Template implements it.
type Prompt interface {
	AddValues(v prompt.Values)
	Messages() ([]message.Message, error)
}

// History is an ordered, append-only conversation log. Messages returns a
// copy. Implementations report their own failures; the chain never sees one.
// *chat.Chat and *history.Store implement it.
type History interface {
	Messages() []message.Message
	Append(msgs ...message.Message)
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger used for debug output. The default discards.
func WithLogger(log *slog.Logger) Option {
	return func(c *Chain) {
		c.log = log
	}
}

// Chain is a single-shot "render, call, record" pipeline.
type Chain struct {
	prompt    Prompt
	completer modeladapter.Completer
	history   History

	header      message.Group
	hasHeader   bool
	sandwich    message.Group
	hasSandwich bool

	log *slog.Logger
}

// New creates a Chain with no history, no header, and no sandwich.
func New(p Prompt, c modeladapter.Completer, opts ...Option) *Chain {
	ch := &Chain{
		prompt:    p,
		completer: c,
		log:       slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(ch)
	}

	return ch
}

// WithMemory attaches h, replacing any previously attached history. The
// caller must not write to h while a run is in progress.
func (c *Chain) WithMemory(h History) *Chain {
	c.history = h
	return c
}

// WithHeaderPrompts sets the block always sent first. Calling it with no
// messages still configures an (empty) header block.
func (c *Chain) WithHeaderPrompts(msgs ...message.Message) *Chain {
	c.header = message.Group(msgs).Clone()
	c.hasHeader = true
	return c
}

// WithSandwichPrompts sets the block sent between the history and the
// current turn. Calling it with no messages still configures an (empty)
// sandwich block.
func (c *Chain) WithSandwichPrompts(msgs ...message.Message) *Chain {
	c.sandwich = message.Group(msgs).Clone()
	c.hasSandwich = true
	return c
}

// HasMemory reports whether a history is attached.
func (c *Chain) HasMemory() bool {
	return c.history != nil
}

// OrderMessages returns the groups sent to the backend for a turn:
// the header (if configured), the history contents (an empty group when no
// history is attached), the sandwich (if configured), and the turn itself.
// Unconfigured header and sandwich blocks are omitted, not sent empty.
func (c *Chain) OrderMessages(turn []message.Message) []message.Group {
	groups := make([]message.Group, 0, 4)

	if c.hasHeader {
		groups = append(groups, c.header.Clone())
	}

	past := message.Group{}
	if c.history != nil {
		if msgs := c.history.Messages(); len(msgs) > 0 {
			past = msgs
		}
	}
	groups = append(groups, past)

	if c.hasSandwich {
		groups = append(groups, c.sandwich.Clone())
	}

	groups = append(groups, message.Group(turn).Clone())

	return groups
}

// Run merges inputs into the prompt's named values and runs the chain.
func (c *Chain) Run(ctx context.Context, inputs map[string]string) (string, error) {
	return c.RunValues(ctx, prompt.Named(inputs))
}

// RunString appends input to the prompt's positional values and runs the
// chain.
func (c *Chain) RunString(ctx context.Context, input string) (string, error) {
	return c.RunValues(ctx, prompt.Positional(input))
}

// RunValues adds v to the prompt and runs the chain, returning the reply text.
func (c *Chain) RunValues(ctx context.Context, v prompt.Values) (string, error) {
	msg, err := c.RunMessage(ctx, v)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// RunMessage is RunValues returning the full reply, metadata included.
// A rendering failure is returned as *PromptError before the backend is
// called; a backend failure is returned as *APIError and leaves the history
// untouched.
func (c *Chain) RunMessage(ctx context.Context, v prompt.Values) (message.Message, error) {
	c.prompt.AddValues(v)

	turn, err := c.prompt.Messages()
	if err != nil {
		return message.Message{}, &PromptError{Err: err}
	}

	return c.execute(ctx, turn)
}

func (c *Chain) execute(ctx context.Context, turn []message.Message) (message.Message, error) {
	groups := c.OrderMessages(turn)

	reply, err := c.completer.Complete(ctx, groups)
	if err != nil {
		return message.Message{}, &APIError{Err: err}
	}

	if c.history != nil {
		for _, m := range turn {
			c.log.DebugContext(ctx, "turn message", "role", m.Role, "content", m.Content)
			if m.Role == role.System {
				continue
			}
			c.log.DebugContext(ctx, "adding to memory", "role", m.Role, "content", m.Content)
			c.history.Append(m)
		}
		c.history.Append(reply)
	}

	return reply, nil
}
