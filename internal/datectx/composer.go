package datectx

import (
	"strings"

	"eduattend/internal/session"
)

// Composer turns a date pick into a follow-up message that repeats the
// user's last question.
type Composer struct {
	loc *Locale
}

// NewComposer creates a composer for loc.
func NewComposer(loc *Locale) *Composer {
	if loc == nil {
		loc = Indonesian
	}
	return &Composer{loc: loc}
}

// Question returns the most recent non-empty user message text with any
// previously appended date suffix removed, or "" if there is none.
func (c *Composer) Question(messages []session.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != session.RoleUser {
			continue
		}
		if text := m.Text(); text != "" {
			return strings.TrimSpace(c.loc.StripSuffix(text))
		}
	}
	return ""
}

// Single composes the follow-up for one date.
func (c *Composer) Single(messages []session.Message, date string) string {
	return c.loc.single(c.subject(messages), date)
}

// Range composes the follow-up for a start and end date.
func (c *Composer) Range(messages []session.Message, start, end string) string {
	return c.loc.span(c.subject(messages), start, end)
}

// Compose dispatches on the kind of pick.
func (c *Composer) Compose(messages []session.Message, p Pick) string {
	if p.IsRange() {
		return c.Range(messages, p.Start, p.End)
	}
	return c.Single(messages, p.Start)
}

func (c *Composer) subject(messages []session.Message) string {
	if q := c.Question(messages); q != "" {
		return q
	}
	return c.loc.fallback
}
