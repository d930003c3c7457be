package parser

import (
	"unicode"
)

// scanner is a backtracking cursor over the schedule text. It remembers
// the furthest offset at which any rule failed together with the labels of
// everything that was expected there, which is what diagnostics report.
type scanner struct {
	src []rune // original text, used in messages
	low []rune // case-folded text, used for matching
	pos int

	failPos  int
	expected []string
}

func newScanner(text string) *scanner {
	src := []rune(text)
	low := make([]rune, len(src))
	for i, r := range src {
		low[i] = fold(r)
	}
	return &scanner{src: src, low: low, failPos: -1}
}

// fold lower-cases r and treats "ё" as "е".
func fold(r rune) rune {
	r = unicode.ToLower(r)
	if r == 'ё' {
		return 'е'
	}
	return r
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.low)
}

func (s *scanner) peek() rune {
	if s.atEnd() {
		return 0
	}
	return s.low[s.pos]
}

// fail records that label was expected at the current offset.
func (s *scanner) fail(label string) {
	switch {
	case s.pos > s.failPos:
		s.failPos = s.pos
		s.expected = append(s.expected[:0], label)
	case s.pos == s.failPos:
		for _, e := range s.expected {
			if e == label {
				return
			}
		}
		s.expected = append(s.expected, label)
	}
}

// try runs rule and rewinds the cursor if it did not match.
func (s *scanner) try(rule func() bool) bool {
	start := s.pos
	if rule() {
		return true
	}
	s.pos = start
	return false
}

func isInlineSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\u00a0'
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

// skipSpace skips spaces within a line.
func (s *scanner) skipSpace() {
	for !s.atEnd() && isInlineSpace(s.low[s.pos]) {
		s.pos++
	}
}

// skipBlank skips spaces and line breaks.
func (s *scanner) skipBlank() {
	for !s.atEnd() && (isInlineSpace(s.low[s.pos]) || isLineBreak(s.low[s.pos])) {
		s.pos++
	}
}

// skipLineBreaks skips a run of blank lines and reports whether at least
// one line break was crossed.
func (s *scanner) skipLineBreaks() bool {
	start := s.pos
	s.skipSpace()
	crossed := false
	for !s.atEnd() && (isInlineSpace(s.low[s.pos]) || isLineBreak(s.low[s.pos])) {
		if isLineBreak(s.low[s.pos]) {
			crossed = true
		}
		s.pos++
	}
	if !crossed {
		s.pos = start
	}
	return crossed
}

// word matches one of the given lower-case spellings after optional spaces.
// Spellings ending in a letter must not be followed by another letter.
// The longest matching spelling wins.
func (s *scanner) word(label string, spellings ...string) (string, bool) {
	start := s.pos
	s.skipSpace()
	best := ""
	for _, w := range spellings {
		if len([]rune(w)) > len([]rune(best)) && s.hasPrefix(w) {
			best = w
		}
	}
	if best == "" {
		s.fail(label)
		s.pos = start
		return "", false
	}
	s.pos += len([]rune(best))
	return best, true
}

func (s *scanner) hasPrefix(w string) bool {
	rs := []rune(w)
	if s.pos+len(rs) > len(s.low) {
		return false
	}
	for i, r := range rs {
		if s.low[s.pos+i] != r {
			return false
		}
	}
	if unicode.IsLetter(rs[len(rs)-1]) {
		next := s.pos + len(rs)
		if next < len(s.low) && unicode.IsLetter(s.low[next]) {
			return false
		}
	}
	return true
}

// digits reads between min and max decimal digits after optional spaces.
// A longer run of digits does not match.
func (s *scanner) digits(label string, min, max int) (int, int, bool) {
	start := s.pos
	s.skipSpace()
	from := s.pos
	value := 0
	for !s.atEnd() && s.pos-from < max && unicode.IsDigit(s.low[s.pos]) && s.low[s.pos] <= '9' {
		value = value*10 + int(s.low[s.pos]-'0')
		s.pos++
	}
	n := s.pos - from
	if n < min || (!s.atEnd() && unicode.IsDigit(s.low[s.pos])) {
		s.pos = from
		s.fail(label)
		s.pos = start
		return 0, 0, false
	}
	return value, n, true
}

// tail returns the original text from offset on
func (s *scanner) tail(offset int) string {
	return string(s.src[offset:])
}

// head returns the original text before offset
func (s *scanner) head(offset int) string {
	return string(s.src[:offset])
}
