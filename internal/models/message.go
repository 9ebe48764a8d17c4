package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry within a triage conversation. It contains the unique
// identifier, the participant's role, the text, and the time when the message was created.
//
// Text of an assistant message is mutated while its reply is streaming and stays fixed afterwards.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time

	// Greeting marks the synthesized welcome message, which never came from a stream.
	Greeting bool
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed (or dictated) by the visitor.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the triage assistant.
	RoleAssistant Role = "assistant"
)

// Turn is the part of a Message that is transmitted to a language model. Identifiers and timestamps
// are stripped.
type Turn struct {
	Role Role
	Text string
}

// Completion is a single request to a language-model backend.
type Completion struct {
	System      string
	History     []Turn
	Message     string
	Temperature float64
}

// NewID returns a time-ordered identifier. Identifiers created later sort after earlier ones.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Turns strips messages down to what a backend needs. Empty messages, left by a reply stopped
// before its first fragment, are skipped since models reject empty turns.
func Turns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		if m.Text == "" {
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Text: m.Text})
	}
	return turns
}
