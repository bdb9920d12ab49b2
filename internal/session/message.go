package session

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one structured piece of a message. Only parts of type "text"
// contribute to Text().
type Part struct {
	Type string
	Text string
}

// Message is a single entry in the session log.
type Message struct {
	ID      string
	Role    Role
	Content string
	Parts   []Part
	Time    time.Time
	Error   bool // synthetic message reporting a transport failure
}

// Text returns the plain text of the message: Content when set, otherwise the
// text parts joined by a single space.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// LastOfRole returns the most recent message with the given role.
func LastOfRole(messages []Message, role Role) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return messages[i], true
		}
	}
	return Message{}, false
}
