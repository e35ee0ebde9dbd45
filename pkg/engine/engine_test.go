package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/promptchain/pkg/chain"
	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Completer that remembers the groups it was sent.
type recorder struct {
	calls [][]message.Group
	reply string
	err   error
}

func (r *recorder) Complete(_ context.Context, groups []message.Group) (message.Message, error) {
	r.calls = append(r.calls, groups)
	if r.err != nil {
		return message.Message{}, r.err
	}
	return message.Assistant(r.reply), nil
}

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case e := <-sub.C:
			out = append(out, e)
		default:
			return out
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestEngine_LoremNoHistory(t *testing.T) {
	eng, err := New(validConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, eng.Close()) }()

	reply, err := eng.Run(context.Background(), prompt.Positional("hello"))
	require.NoError(t, err)
	assert.Equal(t, role.Assistant, reply.Role)
	assert.NotEmpty(t, reply.Content)
	assert.Equal(t, "lorem", reply.Metadata["model"])

	assert.Nil(t, eng.Messages())
	assert.Empty(t, eng.Conversation())
	assert.False(t, eng.Chain().HasMemory())

	_, ok := eng.Store()
	assert.False(t, ok)

	u, ok := eng.Usage()
	require.True(t, ok)
	assert.Positive(t, u.OutputTokens)
}

func TestEngine_MemoryHistory(t *testing.T) {
	cfg := validConfig()
	cfg.History.Kind = HistoryMemory
	cfg.Chain.Prompt.Messages = []MessageConfig{
		{Role: "system", Text: "Answer in {{lang}}."},
		{Text: "{{input}}"},
	}
	cfg.Chain.Sandwich = []MessageConfig{{Role: "system", Text: "Stay on topic."}}

	rec := &recorder{reply: "ok"}
	eng, err := New(cfg, WithCompleter(rec))
	require.NoError(t, err)

	assert.NotEmpty(t, eng.Conversation())

	_, err = eng.Run(context.Background(), prompt.Named(map[string]string{"lang": "French", "input": "Hi"}))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), prompt.Named(map[string]string{"input": "Bye"}))
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, []message.Group{
		{message.User("Hi"), message.Assistant("ok")},
		{message.System("Stay on topic.")},
		{message.System("Answer in French."), message.User("Bye")},
	}, rec.calls[1])

	assert.Equal(t, []message.Message{
		message.User("Hi"),
		message.Assistant("ok"),
		message.User("Bye"),
		message.Assistant("ok"),
	}, eng.Messages())
}

func TestEngine_HeaderEmptyListConfiguresBlock(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.Header = []MessageConfig{}

	rec := &recorder{reply: "ok"}
	eng, err := New(cfg, WithCompleter(rec))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), prompt.Named(map[string]string{"input": "x"}))
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, []message.Group{{}, {}, {message.User("x")}}, rec.calls[0])
}

func TestEngine_SQLiteHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.Dir = dir
	cfg.History = HistoryConfig{Kind: HistorySQLite, Path: "state/history.db", Conversation: "demo"}

	rec := &recorder{reply: "stored"}
	eng, err := New(cfg, WithCompleter(rec))
	require.NoError(t, err)

	store, ok := eng.Store()
	require.True(t, ok)
	assert.Equal(t, "demo", eng.Conversation())
	assert.FileExists(t, filepath.Join(dir, "state", "history.db"))

	_, err = eng.Run(context.Background(), prompt.Positional("first"))
	require.NoError(t, err)
	require.NoError(t, store.Err())
	require.NoError(t, eng.Close())

	// A second engine on the same conversation sees the stored turn.
	eng2, err := New(cfg, WithCompleter(rec))
	require.NoError(t, err)
	defer func() { require.NoError(t, eng2.Close()) }()

	_, err = eng2.Run(context.Background(), prompt.Positional("second"))
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, message.Group{message.User("first"), message.Assistant("stored")}, rec.calls[1][0])
	assert.Len(t, eng2.Messages(), 4)
}

func TestEngine_ConversationOverride(t *testing.T) {
	cfg := validConfig()
	cfg.History = HistoryConfig{Kind: HistorySQLite, Path: filepath.Join(t.TempDir(), "h.db"), Conversation: "from-config"}

	eng, err := New(cfg, WithConversation("from-flag"))
	require.NoError(t, err)
	defer func() { require.NoError(t, eng.Close()) }()

	assert.Equal(t, "from-flag", eng.Conversation())
}

func TestEngine_Events(t *testing.T) {
	cfg := validConfig()
	cfg.History.Kind = HistoryMemory

	eng, err := New(cfg, WithCompleter(&recorder{reply: "ok"}))
	require.NoError(t, err)

	sub := eng.Events().Subscribe(16)
	defer eng.Events().Unsubscribe(sub)

	_, err = eng.Run(context.Background(), prompt.Positional("hi"))
	require.NoError(t, err)

	events := drain(sub)
	assert.Equal(t, []EventKind{EventRunStart, EventMessageStored, EventMessageStored, EventRunEnd}, kinds(events))
	for _, e := range events {
		assert.Equal(t, eng.Conversation(), e.Conversation)
		assert.Equal(t, "p", e.Provider)
	}
	assert.Equal(t, message.User("hi"), events[1].Data)
	assert.Equal(t, message.Assistant("ok"), events[3].Data)
}

func TestEngine_CloseEndsSubscriptions(t *testing.T) {
	eng, err := New(validConfig(), WithCompleter(&recorder{reply: "ok"}))
	require.NoError(t, err)

	sub := eng.Events().Subscribe(4, EventRunEnd)
	require.NoError(t, eng.Close())

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestEngine_BackendError(t *testing.T) {
	cfg := validConfig()
	cfg.History.Kind = HistoryMemory

	boom := errors.New("boom")
	eng, err := New(cfg, WithCompleter(&recorder{err: boom}))
	require.NoError(t, err)

	sub := eng.Events().Subscribe(16)
	defer eng.Events().Unsubscribe(sub)

	_, err = eng.Run(context.Background(), prompt.Positional("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrAPI)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, eng.Messages())

	events := drain(sub)
	assert.Equal(t, []EventKind{EventRunStart, EventError, EventRunEnd}, kinds(events))
}

func TestEngine_PromptError(t *testing.T) {
	rec := &recorder{reply: "ok"}
	cfg := validConfig()
	cfg.Chain.Prompt.Messages = []MessageConfig{{Text: "{{a}} {{b}}"}}

	eng, err := New(cfg, WithCompleter(rec))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), prompt.Named(map[string]string{"a": "x"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrPrompt)
	assert.ErrorIs(t, err, prompt.ErrMissingValue)
	assert.Empty(t, rec.calls)
}

func TestEngine_ConcurrentRunBlocked(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})

	var once sync.Once
	slow := modeladapter.CompleterFunc(func(ctx context.Context, _ []message.Group) (message.Message, error) {
		once.Do(func() { close(started) })
		select {
		case <-unblock:
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
		return message.Assistant("done"), nil
	})

	eng, err := New(validConfig(), WithCompleter(slow))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(context.Background(), prompt.Positional("first"))
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first run did not start")
	}

	_, err = eng.Run(context.Background(), prompt.Positional("second"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another Run is already active")

	close(unblock)
	require.NoError(t, <-done)

	// The guard is released once the first run returns.
	reply, err := eng.Run(context.Background(), prompt.Positional("third"))
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Content)
}

func TestEngine_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine: config")
}

func TestEngine_UnknownProviderKind(t *testing.T) {
	cfg := validConfig()
	cfg.Providers[0].Kind = "nope"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `engine: provider "p"`)
}

func TestEngine_MissingPromptFile(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.Prompt = PromptConfig{File: filepath.Join(t.TempDir(), "missing.yaml")}

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt: load")
}

func TestEngine_SQLiteDefaultConversation(t *testing.T) {
	cfg := validConfig()
	cfg.History = HistoryConfig{Kind: HistorySQLite, Path: filepath.Join(t.TempDir(), "h.db")}

	rec := &recorder{reply: "ok"}
	for _, input := range []string{"first", "second"} {
		eng, err := New(cfg, WithCompleter(rec))
		require.NoError(t, err)
		assert.Equal(t, DefaultConversation, eng.Conversation())

		_, err = eng.Run(context.Background(), prompt.Positional(input))
		require.NoError(t, err)
		require.NoError(t, eng.Close())
	}

	require.Len(t, rec.calls, 2)
	assert.Equal(t, message.Group{message.User("first"), message.Assistant("ok")}, rec.calls[1][0])
}

func TestEngine_NoStoredEventsWhenWriteFails(t *testing.T) {
	cfg := validConfig()
	cfg.History = HistoryConfig{Kind: HistorySQLite, Path: filepath.Join(t.TempDir(), "h.db")}

	ctx, cancel := context.WithCancel(context.Background())
	eng, err := New(cfg, WithCompleter(&recorder{reply: "ok"}), WithBaseContext(ctx))
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	sub := eng.Events().Subscribe(16)
	defer eng.Events().Unsubscribe(sub)

	cancel()

	_, err = eng.Run(context.Background(), prompt.Positional("hi"))
	require.NoError(t, err)

	store, ok := eng.Store()
	require.True(t, ok)
	require.ErrorIs(t, store.Err(), context.Canceled)

	assert.Equal(t, []EventKind{EventRunStart, EventRunEnd}, kinds(drain(sub)))
}
