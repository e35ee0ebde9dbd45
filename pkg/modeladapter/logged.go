package modeladapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/germanamz/promptchain/pkg/chats/message"
)

// Logged returns a Completer that logs the start, duration, and outcome of
// every call to c.
func Logged(c Completer, log *slog.Logger, name string) Completer {
	return CompleterFunc(func(ctx context.Context, groups []message.Group) (message.Message, error) {
		log.DebugContext(ctx, "completion started",
			"provider", name,
			"groups", len(groups),
			"messages", message.Count(groups),
		)

		start := time.Now()

		msg, err := c.Complete(ctx, groups)

		duration := time.Since(start)

		if err != nil {
			log.ErrorContext(ctx, "completion failed",
				"provider", name,
				"duration", duration,
				"error", err,
			)
		} else {
			log.InfoContext(ctx, "completion finished",
				"provider", name,
				"duration", duration,
				"response_chars", len(msg.Content),
			)
		}

		return msg, err
	})
}
