package replace

import "strings"

// Substitute applies every pair of m to text in mapping order. Each step replaces
// all non-overlapping occurrences of the token, scanning left to right, in the
// output of the previous step. A nil mapping leaves text unchanged.
//
// An empty token inserts its value at the start of the text and after every
// UTF-8 sequence, which is k+1 insertions for a k-rune text.
func Substitute(m *Mapping, text string) string {
	return m.Apply(text)
}

// Apply is the method form of Substitute.
func (m *Mapping) Apply(text string) string {
	if m == nil {
		return text
	}
	for _, p := range m.pairs {
		text = strings.ReplaceAll(text, p.Token, p.Value)
	}
	return text
}

// Stats records how many replacements each token performed during one pass.
type Stats struct {
	Counts []TokenCount
}

// TokenCount is the number of replacements made for one token.
type TokenCount struct {
	Token string
	Count int
}

// Total returns the number of replacements across all tokens.
func (s Stats) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c.Count
	}
	return total
}

// ApplyWithStats behaves like Apply and also reports per-token counts.
// Tokens that did not occur are omitted from the stats.
func (m *Mapping) ApplyWithStats(text string) (string, Stats) {
	var stats Stats
	if m == nil {
		return text, stats
	}
	for _, p := range m.pairs {
		// strings.Count agrees with ReplaceAll for the empty token (runes+1).
		n := strings.Count(text, p.Token)
		if n == 0 {
			continue
		}
		text = strings.ReplaceAll(text, p.Token, p.Value)
		stats.Counts = append(stats.Counts, TokenCount{Token: p.Token, Count: n})
	}
	return text, stats
}
