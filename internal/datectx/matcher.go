package datectx

import (
	"strings"
	"time"

	"eduattend/internal/logging"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single evaluation of a configured pattern.
const matchTimeout = 50 * time.Millisecond

// Matcher reports whether text matches a heuristic pattern.
type Matcher interface {
	Matches(text string) bool
	String() string
}

// NewMatcher compiles pattern as a case-insensitive ECMAScript-style regular
// expression. A pattern that fails to compile degrades to case-insensitive
// substring containment; construction never fails.
func NewMatcher(pattern string) Matcher {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase|regexp2.ECMAScript)
	if err != nil {
		logging.Get(logging.CategoryDates).Debug("pattern %q does not compile, using substring match: %v", pattern, err)
		return substringMatcher{needle: strings.ToLower(pattern)}
	}
	re.MatchTimeout = matchTimeout
	return regexMatcher{re: re}
}

// NewMatchers compiles every pattern with NewMatcher, skipping blanks.
func NewMatchers(patterns []string) []Matcher {
	out := make([]Matcher, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, NewMatcher(p))
	}
	return out
}

type regexMatcher struct {
	re *regexp2.Regexp
}

// Matches treats a timed-out evaluation as no match.
func (m regexMatcher) Matches(text string) bool {
	ok, err := m.re.MatchString(text)
	return err == nil && ok
}

func (m regexMatcher) String() string { return "regex:" + m.re.String() }

type substringMatcher struct {
	needle string
}

func (m substringMatcher) Matches(text string) bool {
	return strings.Contains(strings.ToLower(text), m.needle)
}

func (m substringMatcher) String() string { return "substring:" + m.needle }
