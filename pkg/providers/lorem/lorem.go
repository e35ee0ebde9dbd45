// Package lorem provides an offline Completer that answers with lorem ipsum
// text. It needs no network or credentials and is meant for development and
// demos.
package lorem

import (
	"context"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/modeladapter/usage"
)

// ModelName is reported in response metadata.
const ModelName = "lorem"

var (
	_ modeladapter.Completer     = (*Adapter)(nil)
	_ modeladapter.UsageReporter = (*Adapter)(nil)
)

// Adapter generates lorem ipsum replies.
type Adapter struct {
	Paragraphs int           // Number of paragraphs per reply (default 1).
	Delay      time.Duration // Simulated latency before replying.
	Usage      usage.Tracker

	generator *loremgen.Lorem
}

// New creates an Adapter producing the given number of paragraphs.
func New(paragraphs int) *Adapter {
	if paragraphs <= 0 {
		paragraphs = 1
	}

	return &Adapter{
		Paragraphs: paragraphs,
		generator:  loremgen.New(),
	}
}

// UsageTracker returns the adapter's token usage tracker.
func (a *Adapter) UsageTracker() *usage.Tracker { return &a.Usage }

// Complete waits for Delay (or ctx) and returns generated text.
func (a *Adapter) Complete(ctx context.Context, groups []message.Group) (message.Message, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return message.Message{}, err
	}

	if a.generator == nil {
		a.generator = loremgen.New()
	}

	paragraphs := make([]string, max(a.Paragraphs, 1))
	for i := range paragraphs {
		paragraphs[i] = a.generator.Paragraph(3, 5)
	}
	text := strings.Join(paragraphs, "\n\n")

	a.Usage.Add(usage.TokenCount{
		InputTokens:  estimateTokens(groups),
		OutputTokens: len(strings.Fields(text)),
	})

	msg := message.Assistant(text)
	msg.SetMeta("model", ModelName)

	return msg, nil
}

// estimateTokens approximates one token per four characters.
func estimateTokens(groups []message.Group) int {
	chars := 0
	for _, m := range message.Flatten(groups) {
		chars += len(m.Content)
	}
	return chars / 4
}
