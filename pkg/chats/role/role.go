// Package role defines the sender roles used in LLM conversations.
package role

import "fmt"

// Role represents the sender of a message in a conversation.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant, Tool:
		return true
	}
	return false
}

// String returns the underlying string value of the role.
func (r Role) String() string {
	return string(r)
}

// Parse converts s into a Role, failing for anything that is not a known role.
// An empty string parses as User.
func Parse(s string) (Role, error) {
	if s == "" {
		return User, nil
	}

	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("role: unknown role %q", s)
	}

	return r, nil
}
