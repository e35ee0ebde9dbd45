// Package prompt turns accumulated input values into chat messages.
//
// A [Template] is an ordered list of role-tagged message templates whose text
// may contain {{name}} placeholders. Values are accumulated across calls via
// [Template.AddValues] and bound at render time by [Template.Messages].
package prompt

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/valyala/fasttemplate"
	"gopkg.in/yaml.v3"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

var (
	// ErrMissingValue is matched by every MissingValueError.
	ErrMissingValue = errors.New("prompt: missing value")
	// ErrInvalidRole is returned when a message template has an unknown role.
	ErrInvalidRole = errors.New("prompt: invalid role")
)

// MissingValueError reports a placeholder that no named or positional value
// could fill.
type MissingValueError struct {
	Name string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("prompt: missing value for %q", e.Name)
}

// Is reports whether target is ErrMissingValue.
func (e *MissingValueError) Is(target error) bool {
	return target == ErrMissingValue
}

// Values is one batch of inputs. Exactly one of Named or Positional is
// normally set; both are honoured if present.
type Values struct {
	Named      map[string]string
	Positional []string
}

// Named wraps a key/value mapping.
func Named(m map[string]string) Values {
	return Values{Named: m}
}

// Positional wraps positional values.
func Positional(v ...string) Values {
	return Values{Positional: v}
}

// MessageTemplate is a role plus template text.
type MessageTemplate struct {
	Role role.Role `yaml:"role"`
	Text string    `yaml:"text"`
}

// Template renders message templates with accumulated values.
// Template is not safe for concurrent use.
type Template struct {
	messages   []MessageTemplate
	named      map[string]string
	positional []string
}

// New creates a Template with a single user message.
func New(text string) *Template {
	return &Template{
		messages: []MessageTemplate{{Role: role.User, Text: text}},
		named:    map[string]string{},
	}
}

// NewChat creates a Template from several message templates. An empty role
// defaults to user.
func NewChat(templates ...MessageTemplate) (*Template, error) {
	msgs := make([]MessageTemplate, len(templates))
	for i, mt := range templates {
		r, err := role.Parse(string(mt.Role))
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrInvalidRole, i, err)
		}
		msgs[i] = MessageTemplate{Role: r, Text: mt.Text}
	}

	return &Template{messages: msgs, named: map[string]string{}}, nil
}

// file is the on-disk YAML layout of a template.
type file struct {
	Messages []MessageTemplate `yaml:"messages"`
}

// Parse builds a Template from YAML data.
func Parse(data []byte) (*Template, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("prompt: parse: %w", err)
	}

	if len(f.Messages) == 0 {
		return nil, errors.New("prompt: parse: no messages")
	}

	return NewChat(f.Messages...)
}

// Load reads a YAML template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return nil, fmt.Errorf("prompt: load: %w", err)
	}

	return Parse(data)
}

// AddValues merges named values into the accumulated set (later values win)
// and appends positional values to the accumulated list.
func (t *Template) AddValues(v Values) {
	if t.named == nil {
		t.named = map[string]string{}
	}

	maps.Copy(t.named, v.Named)
	t.positional = append(t.positional, v.Positional...)
}

// Reset discards all accumulated values.
func (t *Template) Reset() {
	t.named = map[string]string{}
	t.positional = nil
}

// Variables returns the distinct placeholder names in order of first
// appearance across all message templates.
func (t *Template) Variables() []string {
	seen := map[string]struct{}{}
	var names []string

	for _, mt := range t.messages {
		_, _ = fasttemplate.ExecuteFuncStringWithErr(mt.Text, startTag, endTag, func(_ io.Writer, tag string) (int, error) {
			name := strings.TrimSpace(tag)
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
			return 0, nil
		})
	}

	return names
}

// Messages renders every message template. Named values bind first; the
// remaining placeholders bind to positional values, preferring the most
// recently added ones when there are enough of them.
func (t *Template) Messages() ([]message.Message, error) {
	bindings := t.bind()

	out := make([]message.Message, 0, len(t.messages))
	for _, mt := range t.messages {
		text, err := fasttemplate.ExecuteFuncStringWithErr(mt.Text, startTag, endTag, func(w io.Writer, tag string) (int, error) {
			name := strings.TrimSpace(tag)
			v, ok := bindings[name]
			if !ok {
				return 0, &MissingValueError{Name: name}
			}
			return io.WriteString(w, v)
		})
		if err != nil {
			return nil, fmt.Errorf("prompt: render %s message: %w", mt.Role, err)
		}

		out = append(out, message.New(mt.Role, text))
	}

	return out, nil
}

func (t *Template) bind() map[string]string {
	bindings := maps.Clone(t.named)
	if bindings == nil {
		bindings = map[string]string{}
	}

	var unresolved []string
	for _, name := range t.Variables() {
		if _, ok := bindings[name]; !ok {
			unresolved = append(unresolved, name)
		}
	}

	n, k := len(t.positional), len(unresolved)
	switch {
	case n >= k:
		for i, name := range unresolved {
			bindings[name] = t.positional[n-k+i]
		}
	default:
		for i := range n {
			bindings[unresolved[i]] = t.positional[i]
		}
	}

	return bindings
}
