package datectx

import (
	"strings"

	"eduattend/internal/config"
	"eduattend/internal/session"
)

// Context is the date affordance proposed for the current turn.
type Context struct {
	Show    bool // the last reply is about dates
	IsRange bool // the reply implies a start and an end date
}

// Classifier inspects the most recent assistant reply.
type Classifier struct {
	keywords []string
	ranges   []Matcher
}

// NewClassifier builds a classifier from substring keywords and range
// patterns. Patterns that do not compile degrade to substring matches.
func NewClassifier(keywords, rangePatterns []string) *Classifier {
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &Classifier{keywords: lower, ranges: NewMatchers(rangePatterns)}
}

// FromConfig resolves the configured locale and builds its classifier.
// Configured keyword or pattern lists replace the locale's built-in ones.
func FromConfig(hc config.HeuristicsConfig) (*Classifier, *Locale) {
	loc := LocaleFor(hc.Locale)
	keywords, patterns := loc.DateKeywords, loc.RangePatterns
	if len(hc.DateKeywords) > 0 {
		keywords = hc.DateKeywords
	}
	if len(hc.RangePatterns) > 0 {
		patterns = hc.RangePatterns
	}
	return NewClassifier(keywords, patterns), loc
}

// Classify looks only at the text of the most recent assistant message.
func (c *Classifier) Classify(messages []session.Message) Context {
	last, ok := session.LastOfRole(messages, session.RoleAssistant)
	if !ok {
		return Context{}
	}
	return c.ClassifyText(last.Text())
}

// ClassifyText classifies a single reply text.
func (c *Classifier) ClassifyText(text string) Context {
	if text == "" {
		return Context{}
	}
	lower := strings.ToLower(text)

	show := false
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			show = true
			break
		}
	}
	if !show {
		return Context{}
	}

	for _, m := range c.ranges {
		if m.Matches(lower) {
			return Context{Show: true, IsRange: true}
		}
	}
	return Context{Show: true}
}
