package models

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message represents a single role-tagged message sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Conversation is the two-message exchange sent to a provider: the compiled
// instructions as the system message, then the caller's task prompt.
// It is built once per call and never mutated.
type Conversation struct {
	system Message
	user   Message
}

// NewConversation constructs a conversation from compiled instructions and the user prompt.
func NewConversation(instructions, prompt string) Conversation {
	return Conversation{
		system: Message{Role: RoleSystem, Content: instructions},
		user:   Message{Role: RoleUser, Content: prompt},
	}
}

// Messages returns the ordered message list. Each call returns a fresh slice.
func (c Conversation) Messages() []Message {
	return []Message{c.system, c.user}
}

// System returns the instruction message.
func (c Conversation) System() Message {
	return c.system
}

// User returns the task prompt message.
func (c Conversation) User() Message {
	return c.user
}
