package poller

import (
	"regexp"
	"strings"
)

// Candidate is one extracted AI-reply string under classification, together
// with the value most recently spoken for the session.
type Candidate struct {
	Text       string
	LastSpoken string
}

// Predicate rejects a candidate for a named reason. Predicates run in order;
// the first rejection wins.
type Predicate struct {
	Name   string
	Reject func(c Candidate) bool
}

// Classifier decides whether extracted text is worth narrating. The chain is
// pluggable so heuristics can be swapped or tested independently of polling.
type Classifier struct {
	predicates []Predicate

	minLen       int
	partialLen   int
	longAcceptLen int

	projectMarker    string
	unrelatedMarkers []string
}

const (
	defaultMinLen        = 20
	defaultPartialLen    = 100
	defaultLongAcceptLen = 160
	spokenPrefixLen      = 48
)

var (
	boilerplatePhrases = []string{
		"i'll help you",
		"i can help with that",
		"let me know if you need anything else",
		"sure, i can do that",
		"sounds good",
		"here's what i found",
	}
	questionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\?\s*$`),
		regexp.MustCompile(`(?i)^(would you like|do you want|should i|which (one|option)|can you clarify)`),
	}
	codePatterns = []*regexp.Regexp{
		regexp.MustCompile("```"),
		regexp.MustCompile(`(?m)^\s*(func|import|package|const|var)\s`),
		regexp.MustCompile(`=>|</|/>`),
		regexp.MustCompile(`[{};]\s*$`),
	}
	completionKeywords = []string{
		"updated", "fixed", "completed", "added", "created", "done",
		"implemented", "changed", "removed", "refactored", "finished",
	}
)

func endsWithClosingPunct(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// NewClassifier builds the default rejection chain. projectMarker, when
// non-empty, is expected to appear in replies about this project; candidates
// mentioning unrelatedMarkers without it are rejected as cross-talk from
// some other conversation pane.
func NewClassifier(projectMarker string, unrelatedMarkers []string) *Classifier {
	c := &Classifier{
		minLen:           defaultMinLen,
		partialLen:       defaultPartialLen,
		longAcceptLen:    defaultLongAcceptLen,
		projectMarker:    projectMarker,
		unrelatedMarkers: unrelatedMarkers,
	}
	c.predicates = []Predicate{
		{Name: "too-short", Reject: func(cd Candidate) bool {
			return len(strings.TrimSpace(cd.Text)) < c.minLen
		}},
		{Name: "partial-fragment", Reject: func(cd Candidate) bool {
			t := strings.TrimSpace(cd.Text)
			return !endsWithClosingPunct(t) && len(t) < c.partialLen
		}},
		{Name: "repeats-spoken-prefix", Reject: func(cd Candidate) bool {
			if cd.LastSpoken == "" {
				return false
			}
			n := spokenPrefixLen
			if len(cd.LastSpoken) < n || len(cd.Text) < n {
				return false
			}
			return cd.Text[:n] == cd.LastSpoken[:n]
		}},
		{Name: "boilerplate", Reject: func(cd Candidate) bool {
			lower := strings.ToLower(cd.Text)
			for _, p := range boilerplatePhrases {
				if strings.Contains(lower, p) {
					return true
				}
			}
			return false
		}},
		{Name: "unrelated-project", Reject: func(cd Candidate) bool {
			if c.projectMarker == "" || strings.Contains(cd.Text, c.projectMarker) {
				return false
			}
			for _, m := range c.unrelatedMarkers {
				if m != "" && strings.Contains(cd.Text, m) {
					return true
				}
			}
			return false
		}},
		{Name: "question-at-user", Reject: func(cd Candidate) bool {
			for _, re := range questionPatterns {
				if re.MatchString(strings.TrimSpace(cd.Text)) {
					return true
				}
			}
			return false
		}},
		{Name: "code-fragment", Reject: func(cd Candidate) bool {
			for _, re := range codePatterns {
				if re.MatchString(cd.Text) {
					return true
				}
			}
			return false
		}},
	}
	return c
}

// WithPredicates replaces the rejection chain. Used in tests and for tuning.
func (c *Classifier) WithPredicates(preds ...Predicate) *Classifier {
	c.predicates = preds
	return c
}

// Meaningful reports whether the candidate should be narrated, and the name
// of the rejecting predicate when it should not ("" when accepted).
func (c *Classifier) Meaningful(cd Candidate) (bool, string) {
	for _, p := range c.predicates {
		if p.Reject(cd) {
			return false, p.Name
		}
	}
	t := strings.TrimSpace(cd.Text)
	if !endsWithClosingPunct(t) {
		return false, "no-closing-punctuation"
	}
	lower := strings.ToLower(t)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true, ""
		}
	}
	if len(t) >= c.longAcceptLen {
		return true, ""
	}
	return false, "no-completion-signal"
}
