package llm

// #region imports
import "context"

// #endregion

// #region roles

// Role tags a chat message with its speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// #endregion

// #region message

// Message is one turn of a conversation sent to a provider. Immutable once
// constructed.
type Message struct {
	Role    Role
	Content string
}

// System builds a system-role message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user-role message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// #endregion

// #region provider

// Provider is an interchangeable text-generation backend. Generate sends a
// conversation and returns raw text; Healthcheck probes availability without
// consuming a generation call.
type Provider interface {
	Name() string
	Generate(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error)
	Healthcheck(ctx context.Context) bool
}

// #endregion
