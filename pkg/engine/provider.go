package engine

import (
	"fmt"
	"sync"

	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/providers/anthropic"
	"github.com/germanamz/promptchain/pkg/providers/langchain"
	"github.com/germanamz/promptchain/pkg/providers/lorem"
	"github.com/germanamz/promptchain/pkg/providers/openai"
)

// ProviderFactory creates a Completer from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factoryMu.Lock()
		defer factoryMu.Unlock()

		factories["anthropic"] = newAnthropic
		factories["openai"] = newOpenAI
		factories["ollama"] = newOllama
		factories["lorem"] = newLorem
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

// applyModel copies the shared model settings onto an embedded adapter.
func applyModel(a *modeladapter.ModelAdapter, cfg ProviderConfig) {
	if cfg.Temperature != 0 {
		a.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		a.MaxTokens = cfg.MaxTokens
	}
}

func newAnthropic(cfg ProviderConfig) (modeladapter.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	a := anthropic.New(baseURL, cfg.APIKey, cfg.Model)
	applyModel(&a.ModelAdapter, cfg)

	return a, nil
}

func newOpenAI(cfg ProviderConfig) (modeladapter.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	a := openai.New(baseURL, cfg.APIKey, cfg.Model)
	applyModel(&a.ModelAdapter, cfg)

	return a, nil
}

func newOllama(cfg ProviderConfig) (modeladapter.Completer, error) {
	a, err := langchain.NewOllama(cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, err
	}

	a.Temperature = cfg.Temperature
	a.MaxTokens = cfg.MaxTokens

	return a, nil
}

func newLorem(cfg ProviderConfig) (modeladapter.Completer, error) {
	return lorem.New(cfg.Paragraphs), nil
}

// buildCompleter creates a Completer from a ProviderConfig using the registered
// factory for its Kind.
func buildCompleter(cfg ProviderConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	return factory(cfg)
}
