package chain

import "errors"

var (
	// ErrPrompt is matched by every *PromptError.
	ErrPrompt = errors.New("chain: prompt error")
	// ErrAPI is matched by every *APIError.
	ErrAPI = errors.New("chain: api error")
)

// PromptError reports that the prompt could not be rendered. The backend was
// not called and the history was not touched.
type PromptError struct {
	Err error
}

func (e *PromptError) Error() string {
	return "chain: render prompt: " + e.Err.Error()
}

func (e *PromptError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPrompt.
func (e *PromptError) Is(target error) bool { return target == ErrPrompt }

// APIError reports that the backend call failed. The history was not touched.
type APIError struct {
	Err error
}

func (e *APIError) Error() string {
	return "chain: backend: " + e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAPI.
func (e *APIError) Is(target error) bool { return target == ErrAPI }
