package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/joho/godotenv"
)

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// parseVars turns repeated key=value flags into named values. Later keys win.
func parseVars(vars []string) (map[string]string, error) {
	named := make(map[string]string, len(vars))
	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", kv)
		}
		named[k] = v
	}
	return named, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// renderMarkdown converts markdown text to terminal-formatted output, falling
// back to the raw text when rendering fails.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// formatMessage renders a stored message with a colored role label,
// indenting continuation lines under the first.
func formatMessage(m message.Message) string {
	label := roleLabel(m.Role)
	lines := strings.Split(m.Content, "\n")
	if len(lines) <= 1 {
		return label + " " + m.Content
	}

	indent := strings.Repeat(" ", len(m.Role.String())+3)
	var b strings.Builder
	b.WriteString(label + " " + lines[0])
	for _, l := range lines[1:] {
		b.WriteString("\n" + indent + l)
	}
	return b.String()
}

func roleLabel(r role.Role) string {
	text := "[" + r.String() + "]"
	switch r {
	case role.User:
		return userLabelStyle.Render(text)
	case role.Assistant:
		return assistantLabelStyle.Render(text)
	case role.System:
		return systemLabelStyle.Render(text)
	default:
		return dimStyle.Render(text)
	}
}
