package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/germanamz/promptchain/pkg/prompt"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// History kinds.
const (
	HistoryNone   = "none"
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
)

// Config is the top-level engine configuration.
type Config struct {
	Dir       string           `yaml:"-"` // Directory of the config file; relative paths resolve against it.
	Providers []ProviderConfig `yaml:"providers"`
	Chain     ChainConfig      `yaml:"chain"`
	History   HistoryConfig    `yaml:"history"`
}

// ProviderConfig describes an LLM provider instance.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Paragraphs  int     `yaml:"paragraphs"` // lorem only: paragraphs per reply.
}

// MessageConfig is a fixed or templated message.
type MessageConfig struct {
	Role string `yaml:"role"`
	Text string `yaml:"text"`
}

// PromptConfig selects the prompt template: either a YAML file or inline
// messages.
type PromptConfig struct {
	File     string          `yaml:"file"`
	Messages []MessageConfig `yaml:"messages"`
}

// ChainConfig describes the chain. A nil Header or Sandwich means the block
// is not configured; an explicit empty list configures an empty block.
type ChainConfig struct {
	Provider string          `yaml:"provider"`
	Prompt   PromptConfig    `yaml:"prompt"`
	Header   []MessageConfig `yaml:"header"`
	Sandwich []MessageConfig `yaml:"sandwich"`
}

// HistoryConfig selects where the conversation is kept.
type HistoryConfig struct {
	Kind         string `yaml:"kind"`
	Path         string `yaml:"path"`
	Conversation string `yaml:"conversation"`
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can live in the environment (e.g. loaded from
// a .env file) rather than in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, err
	}
	cfg.Dir = filepath.Dir(path)

	return cfg, nil
}

// ParseConfig parses YAML configuration data after environment expansion.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Providers, validation.Required),
		validation.Field(&c.Chain),
		validation.Field(&c.History),
	); err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}

	names := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		names[p.Name] = struct{}{}
	}

	if _, err := c.chainProvider(); err != nil {
		return err
	}

	return nil
}

// chainProvider resolves the provider the chain uses. An empty name is
// allowed only when exactly one provider is configured.
func (c Config) chainProvider() (ProviderConfig, error) {
	if c.Chain.Provider == "" {
		if len(c.Providers) == 1 {
			return c.Providers[0], nil
		}
		return ProviderConfig{}, errors.New("engine: config: chain.provider is required when several providers are configured")
	}

	for _, p := range c.Providers {
		if p.Name == c.Chain.Provider {
			return p, nil
		}
	}

	return ProviderConfig{}, fmt.Errorf("engine: config: chain: unknown provider %q", c.Chain.Provider)
}

// Validate checks a single provider entry.
func (p ProviderConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Kind, validation.Required),
		validation.Field(&p.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&p.MaxTokens, validation.Min(0)),
		validation.Field(&p.Paragraphs, validation.Min(0)),
	)
}

// Validate checks the role of a message entry.
func (m MessageConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Role, validation.By(func(v any) error {
			_, err := role.Parse(v.(string))
			return err
		})),
	)
}

// Validate checks that exactly one prompt source is set.
func (p PromptConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.File,
			validation.When(len(p.Messages) == 0, validation.Required.Error("either file or messages is required")),
			validation.When(len(p.Messages) > 0, validation.Empty.Error("cannot be combined with messages")),
		),
		validation.Field(&p.Messages),
	)
}

// Validate checks the chain section.
func (c ChainConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Prompt),
		validation.Field(&c.Header),
		validation.Field(&c.Sandwich),
	)
}

// Validate checks the history section.
func (h HistoryConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Kind, validation.In("", HistoryNone, HistoryMemory, HistorySQLite)),
		validation.Field(&h.Path, validation.When(h.Kind == HistorySQLite, validation.Required)),
	)
}

// loadPrompt builds the prompt template described by the chain section.
func (c Config) loadPrompt() (*prompt.Template, error) {
	pc := c.Chain.Prompt
	if pc.File != "" {
		path := pc.File
		if !filepath.IsAbs(path) && c.Dir != "" {
			path = filepath.Join(c.Dir, path)
		}
		return prompt.Load(path)
	}

	templates := make([]prompt.MessageTemplate, len(pc.Messages))
	for i, m := range pc.Messages {
		templates[i] = prompt.MessageTemplate{Role: role.Role(m.Role), Text: m.Text}
	}

	return prompt.NewChat(templates...)
}

// historyPath resolves the sqlite path against the config directory.
func (c Config) historyPath() string {
	if filepath.IsAbs(c.History.Path) || c.Dir == "" {
		return c.History.Path
	}
	return filepath.Join(c.Dir, c.History.Path)
}

// toMessages converts configured fixed messages. Roles have been validated.
func toMessages(cfgs []MessageConfig) []message.Message {
	out := make([]message.Message, 0, len(cfgs))
	for _, m := range cfgs {
		r, _ := role.Parse(m.Role)
		out = append(out, message.New(r, m.Text))
	}
	return out
}
