package core

import "strings"

// Matcher implements the vellum.Automaton interface so it can prune
// branches of a segment's FST trie while streaming, and also supports
// whole-string matching for the in-memory overlay.
//
// The query compiles to an anchored, case-insensitive pattern of the shape
// `(?i)(?s).*word1.*word2.*...wordN.*`, where each wordK is the literal,
// regex-escaped form of a whitespace-separated word from the query (spec
// §4.6). The `.*` only ever sits between and around whole words — never
// between the characters of a single word — so each word must appear as
// one contiguous, case-insensitive run, in order, with arbitrary filler
// allowed before, between, and after them. Matching happens on raw bytes
// of the UTF-8 form (ASCII-only case folding, no unicode-aware substring
// semantics — see spec Non-goals).
//
// A state is a single int: the flattened byte-position of the match
// within the concatenated word list, where word i's positions occupy
// [offsets[i], offsets[i+1]). Reaching offsets[len(words)] means every
// word matched in order and is an absorbing accept state. Within a word,
// a mismatched byte doesn't necessarily drop all the way back to the
// start of that word — the wildcard before the word lets the match
// restart anywhere, including at a position that overlaps the partial
// match so far (e.g. word "aab" scanning "aaab" must still find the
// match starting at index 1), so restarts are resolved with a
// Knuth-Morris-Pratt failure function per word rather than a flat reset
// to zero.
type Matcher struct {
	words   [][]byte // folded bytes of each query word, in order
	offsets []int    // offsets[i] is the flattened state at which word i begins; offsets[len(words)] is the accept state
	fail    [][]int  // fail[i] is word i's KMP failure function (fail[i][k] = longest proper prefix of words[i][:k+1] that is also a suffix)
}

// newMatcher compiles query into a Matcher. Whitespace splits the query
// into words; each word is matched as its own contiguous substring, and
// words are required in order but are independently anchored by the
// wildcard between them.
func newMatcher(query string) *Matcher {
	fields := strings.Fields(query)

	m := &Matcher{
		words:   make([][]byte, len(fields)),
		offsets: make([]int, len(fields)+1),
		fail:    make([][]int, len(fields)),
	}

	offset := 0
	for i, word := range fields {
		folded := make([]byte, len(word))
		for j := 0; j < len(word); j++ {
			folded[j] = foldByte(word[j])
		}
		m.words[i] = folded
		m.offsets[i] = offset
		m.fail[i] = kmpFailure(folded)
		offset += len(folded)
	}
	m.offsets[len(fields)] = offset

	return m
}

// kmpFailure computes the standard KMP failure (longest proper
// prefix-that-is-also-a-suffix) function for word.
func kmpFailure(word []byte) []int {
	fail := make([]int, len(word))
	k := 0
	for i := 1; i < len(word); i++ {
		for k > 0 && word[i] != word[k] {
			k = fail[k-1]
		}
		if word[i] == word[k] {
			k++
		}
		fail[i] = k
	}
	return fail
}

func foldByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// doneState is the absorbing accept state: every word has matched.
func (m *Matcher) doneState() int { return m.offsets[len(m.words)] }

// wordAt returns which word a non-accepting state's progress belongs to,
// and how many of that word's bytes have matched so far.
func (m *Matcher) wordAt(state int) (idx, matched int) {
	for i := len(m.offsets) - 2; i >= 0; i-- {
		if state >= m.offsets[i] {
			return i, state - m.offsets[i]
		}
	}
	return 0, 0
}

// Start implements vellum.Automaton.
func (m *Matcher) Start() int { return 0 }

// IsMatch implements vellum.Automaton. Every word has matched once state
// reaches the accept state.
func (m *Matcher) IsMatch(state int) bool { return state >= m.doneState() }

// CanMatch implements vellum.Automaton. No state is ever dead: the
// wildcard before the current word (and before every word after it) can
// always be extended by one more filler byte while we keep looking for a
// contiguous run of the current word's bytes.
func (m *Matcher) CanMatch(int) bool { return true }

// WillAlwaysMatch implements vellum.Automaton. Once every word has
// matched, nothing that follows can undo it — the accept state is
// absorbing.
func (m *Matcher) WillAlwaysMatch(state int) bool { return state >= m.doneState() }

// Accept implements vellum.Automaton. It advances the current word's KMP
// state on b, falling back through the failure function on a mismatch
// so a valid overlapping restart is never missed, and rolls over into
// the next word once the current one matches in full.
func (m *Matcher) Accept(state int, b byte) int {
	if state >= m.doneState() {
		return state
	}

	idx, k := m.wordAt(state)
	word := m.words[idx]
	fail := m.fail[idx]
	fb := foldByte(b)

	for k > 0 && fb != word[k] {
		k = fail[k-1]
	}
	if fb == word[k] {
		k++
	}

	if k == len(word) {
		return m.offsets[idx+1]
	}
	return m.offsets[idx] + k
}

// isMatchString reports whether s matches the compiled pattern, used for
// scanning the unindexed in-memory overlay.
func (m *Matcher) isMatchString(s string) bool {
	state := m.Start()
	for i := 0; i < len(s) && !m.IsMatch(state); i++ {
		state = m.Accept(state, s[i])
	}
	return m.IsMatch(state)
}
