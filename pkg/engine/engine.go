package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/promptchain/pkg/chain"
	"github.com/germanamz/promptchain/pkg/chats/chat"
	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/history"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/modeladapter/usage"
	"github.com/germanamz/promptchain/pkg/prompt"
	"github.com/google/uuid"
)

// Option configures an Engine.
type Option func(*options)

// DefaultConversation is the SQLite conversation used when neither the
// config nor WithConversation names one, so consecutive runs share history.
const DefaultConversation = "default"

type options struct {
	log          *slog.Logger
	conversation string
	completer    modeladapter.Completer
	ctx          context.Context
}

// WithLogger sets the logger handed to the chain, the history store, and the
// completion logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithConversation overrides history.conversation from the config.
func WithConversation(id string) Option {
	return func(o *options) { o.conversation = id }
}

// WithBaseContext sets the context under which the SQLite history reads and
// writes. Cancelling it aborts history access for every later run.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithCompleter bypasses the provider registry and uses c as the backend.
func WithCompleter(c modeladapter.Completer) Option {
	return func(o *options) { o.completer = c }
}

// Engine owns a configured chain and the resources behind it. Runs are
// serialized: a Run that starts while another is in flight fails instead of
// interleaving with it.
type Engine struct {
	events       *EventBus
	chain        *chain.Chain
	completer    modeladapter.Completer
	provider     string
	history      chain.History
	store        *history.Store
	conversation string

	mu     sync.Mutex
	active bool
}

// New validates cfg and assembles the chain it describes.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: slog.New(slog.DiscardHandler), ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	pc, err := cfg.chainProvider()
	if err != nil {
		return nil, err
	}

	completer := o.completer
	if completer == nil {
		completer, err = buildCompleter(pc)
		if err != nil {
			return nil, fmt.Errorf("engine: provider %q: %w", pc.Name, err)
		}
	}

	tmpl, err := cfg.loadPrompt()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		events:       NewEventBus(),
		completer:    completer,
		provider:     pc.Name,
		conversation: cfg.History.Conversation,
	}
	if o.conversation != "" {
		e.conversation = o.conversation
	}

	e.chain = chain.New(tmpl, modeladapter.Logged(completer, o.log, pc.Name), chain.WithLogger(o.log))

	switch cfg.History.Kind {
	case HistorySQLite:
		if e.conversation == "" {
			e.conversation = DefaultConversation
		}
		store, err := history.Open(cfg.historyPath(), e.conversation,
			history.WithLogger(o.log),
			history.WithContext(o.ctx),
		)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.store = store
		e.conversation = store.ConversationID()
		e.history = store
	case HistoryMemory:
		if e.conversation == "" {
			e.conversation = uuid.NewString()
		}
		e.history = chat.New()
	}

	if e.history != nil {
		e.chain.WithMemory(&observedHistory{History: e.history, engine: e})
	}
	if cfg.Chain.Header != nil {
		e.chain.WithHeaderPrompts(toMessages(cfg.Chain.Header)...)
	}
	if cfg.Chain.Sandwich != nil {
		e.chain.WithSandwichPrompts(toMessages(cfg.Chain.Sandwich)...)
	}

	return e, nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Chain returns the assembled chain for direct use. Runs made through it
// bypass the engine's serialization and events.
func (e *Engine) Chain() *chain.Chain { return e.chain }

// Conversation returns the conversation id, or "" when no history is kept.
func (e *Engine) Conversation() string { return e.conversation }

// Store returns the SQLite store when history.kind is sqlite.
func (e *Engine) Store() (*history.Store, bool) { return e.store, e.store != nil }

// Messages returns the stored conversation, or nil when no history is kept.
func (e *Engine) Messages() []message.Message {
	if e.history == nil {
		return nil
	}
	return e.history.Messages()
}

// Usage returns the total token usage of the backend, if it reports any.
func (e *Engine) Usage() (usage.TokenCount, bool) {
	r, ok := e.completer.(modeladapter.UsageReporter)
	if !ok {
		return usage.TokenCount{}, false
	}
	return r.UsageTracker().Total(), true
}

// Run adds v to the prompt and runs the chain once.
func (e *Engine) Run(ctx context.Context, v prompt.Values) (message.Message, error) {
	if err := e.acquire(); err != nil {
		return message.Message{}, err
	}
	defer e.release()

	e.publish(EventRunStart, nil)

	reply, err := e.chain.RunMessage(ctx, v)
	if err != nil {
		e.publish(EventError, err)
		e.publish(EventRunEnd, nil)
		return message.Message{}, err
	}

	e.publish(EventRunEnd, reply)

	return reply, nil
}

// Close closes every event subscription and releases the history store,
// if any.
func (e *Engine) Close() error {
	e.events.Close()

	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func (e *Engine) publish(kind EventKind, data any) {
	e.events.Publish(Event{
		Kind:         kind,
		Conversation: e.conversation,
		Provider:     e.provider,
		Timestamp:    time.Now(),
		Data:         data,
	})
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return fmt.Errorf("engine: conversation %s: another Run is already active", e.conversation)
	}
	e.active = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = false
}

// failureCounter is implemented by histories that swallow write failures.
type failureCounter interface {
	Failures() int
}

// observedHistory publishes an event for every message the underlying
// history actually stored.
type observedHistory struct {
	chain.History
	engine *Engine
}

func (h *observedHistory) failures() int {
	if fc, ok := h.History.(failureCounter); ok {
		return fc.Failures()
	}
	return 0
}

func (h *observedHistory) Append(msgs ...message.Message) {
	before := h.failures()
	h.History.Append(msgs...)
	if h.failures() != before {
		return
	}

	for _, m := range msgs {
		h.engine.publish(EventMessageStored, m)
	}
}
