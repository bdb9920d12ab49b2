// Package artifact finds downloadable files referenced by the assistant and
// fetches them on request.
package artifact

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"eduattend/internal/session"
)

// DefaultExtensions are the artifact extensions recognised when none are
// configured.
var DefaultExtensions = []string{"pdf"}

// Detector extracts artifact filenames from a message log.
type Detector struct {
	pattern *regexp.Regexp
	exts    []string // lowercase, with leading dot
}

// NewDetector builds a detector for the given extensions, with or without
// a leading dot. Empty input uses DefaultExtensions.
func NewDetector(extensions []string) *Detector {
	var exts, alts []string
	seen := make(map[string]bool)
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		exts = append(exts, "."+e)
		alts = append(alts, regexp.QuoteMeta(e))
	}
	if len(exts) == 0 {
		return NewDetector(DefaultExtensions)
	}

	// Alternation is leftmost-first, so "xlsx" must be tried before "xls".
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })

	return &Detector{
		pattern: regexp.MustCompile(`(?i)[\w/\\:.-]+\.(?:` + strings.Join(alts, "|") + `)\b`),
		exts:    exts,
	}
}

// Detect returns the unique artifact filenames mentioned in assistant
// messages, in first-seen order. User messages are ignored. Detect is pure;
// call it again whenever the log changes.
func (d *Detector) Detect(messages []session.Message) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range messages {
		if m.Role != session.RoleAssistant {
			continue
		}
		for _, match := range d.pattern.FindAllString(m.Text(), -1) {
			name := d.filename(match)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// filename normalizes separators and keeps the final path segment, or ""
// when that segment is not a recognised artifact.
func (d *Detector) filename(match string) string {
	name := path.Base(strings.ReplaceAll(match, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	lower := strings.ToLower(name)
	for _, ext := range d.exts {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return name
		}
	}
	return ""
}
