// Package wait implements edge and level matching over logic samples.
// A decoder advances through a capture by asking, sample by sample, which
// of a set of alternative pin conditions holds.
package wait

// Term is a single-channel requirement within a condition.
type Term int8

const (
	DontCare Term = iota
	Low
	High
	Rising
	Falling
	Either // any edge
)

// Cond is a conjunction of per-channel terms, keyed by channel index.
// A term keyed on a negative channel index makes the condition
// unmatchable, so conditions on unmapped optional channels drop out
// without special casing at the call sites.
type Cond map[int]Term

// Matches is a bitmask of condition indexes that matched a sample.
type Matches uint32

func (m Matches) Is(i int) bool {
	return m&(1<<uint(i)) != 0
}

func (m Matches) Any() bool {
	return m != 0
}

// Scanner evaluates conditions against consecutive samples, carrying the
// previous pin state across segment boundaries. Edge terms never match on
// the very first sample seen.
type Scanner struct {
	prev     byte
	havePrev bool
}

func NewScanner() *Scanner {
	return &Scanner{}
}

func (s *Scanner) Reset() {
	s.prev = 0
	s.havePrev = false
}

func bit(sample byte, ch int) byte {
	return (sample >> uint(ch)) & 1
}

func (s *Scanner) termMatch(term Term, cur byte, ch int) bool {
	switch term {
	case DontCare:
		return true
	case Low:
		return bit(cur, ch) == 0
	case High:
		return bit(cur, ch) == 1
	case Rising:
		return s.havePrev && bit(s.prev, ch) == 0 && bit(cur, ch) == 1
	case Falling:
		return s.havePrev && bit(s.prev, ch) == 1 && bit(cur, ch) == 0
	case Either:
		return s.havePrev && bit(s.prev, ch) != bit(cur, ch)
	}
	return false
}

// Match advances the scanner by one sample and reports which of conds hold
// at it. Conditions with no terms never match.
func (s *Scanner) Match(cur byte, conds []Cond) Matches {
	var matched Matches
	for i, cond := range conds {
		if len(cond) == 0 {
			continue
		}
		ok := true
		for ch, term := range cond {
			if ch < 0 || !s.termMatch(term, cur, ch) {
				ok = false
				break
			}
		}
		if ok {
			matched |= 1 << uint(i)
		}
	}

	s.prev = cur
	s.havePrev = true
	return matched
}
