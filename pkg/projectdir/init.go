package projectdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const gitignoreContent = "local/\n"

// DefaultConfig is written by Bootstrap. It runs offline against the lorem
// provider; the commented providers show the other kinds.
const DefaultConfig = `providers:
  - name: offline
    kind: lorem
    paragraphs: 1
  # - name: claude
  #   kind: anthropic
  #   api_key: ${ANTHROPIC_API_KEY}
  #   model: claude-sonnet-4-20250514
  #   max_tokens: 1024
  # - name: gpt
  #   kind: openai
  #   api_key: ${OPENAI_API_KEY}
  #   model: gpt-4o-mini
  # - name: local
  #   kind: ollama
  #   model: llama3

chain:
  provider: offline
  prompt:
    file: prompts/default.yaml
  header:
    - role: system
      text: You are a helpful assistant.

history:
  kind: sqlite
  path: local/history.db
  conversation: default
`

// DefaultPrompt is the template referenced by DefaultConfig.
const DefaultPrompt = `messages:
  - role: user
    text: "{{input}}"
`

// EnsureStructure creates the local/ directory and .gitignore file if they are
// missing. It is idempotent and does not create the root itself.
func EnsureStructure(d Dir) error {
	if err := os.MkdirAll(d.LocalDir(), 0o750); err != nil {
		return fmt.Errorf("projectdir: create local dir: %w", err)
	}

	if err := writeIfMissing(d.GitignorePath(), gitignoreContent); err != nil {
		return fmt.Errorf("projectdir: gitignore: %w", err)
	}

	return nil
}

// Bootstrap creates the full layout with the default config and prompt.
// Existing files are left untouched.
func Bootstrap(d Dir) error {
	if err := os.MkdirAll(d.PromptsDir(), 0o750); err != nil {
		return fmt.Errorf("projectdir: create prompts dir: %w", err)
	}

	if err := EnsureStructure(d); err != nil {
		return err
	}

	if err := writeIfMissing(d.ConfigPath(), DefaultConfig); err != nil {
		return fmt.Errorf("projectdir: config: %w", err)
	}

	if err := writeIfMissing(filepath.Join(d.PromptsDir(), "default.yaml"), DefaultPrompt); err != nil {
		return fmt.Errorf("projectdir: prompt: %w", err)
	}

	return nil
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return os.WriteFile(path, []byte(content), 0o600)
}
