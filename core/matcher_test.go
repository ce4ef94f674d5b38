package core

import "testing"

func TestMatcherWordIsContiguousSubstring(t *testing.T) {
	m := newMatcher("rpt")
	cases := map[string]bool{
		"my_rpt_final.pdf": true,
		"rpt":              true,
		"report.pdf":       false, // r-e-p-o-r-t has no contiguous "rpt" run
		"reports/2024.md":  false,
		"pt":               false,
		"trp":              false,
	}
	for s, want := range cases {
		if got := m.isMatchString(s); got != want {
			t.Errorf("isMatchString(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestMatcherOverlappingRestart(t *testing.T) {
	// "aab" isn't found by resetting to zero on every mismatch: scanning
	// "aaab" byte by byte matches "a","a" (k=2), then the third 'a' fails
	// against the expected 'b', and the only correct restart point is k=1
	// (the second 'a'), not k=0.
	m := newMatcher("aab")
	if !m.isMatchString("aaab") {
		t.Errorf("expected overlapping restart to still find aab in aaab")
	}
	if m.isMatchString("aaa") {
		t.Errorf("expected no match when the word never completes")
	}
}

func TestMatcherCaseInsensitive(t *testing.T) {
	m := newMatcher("ReadMe")
	if !m.isMatchString("README.md") {
		t.Errorf("expected case-insensitive match")
	}
	if !m.isMatchString("my-readme-file.txt") {
		t.Errorf("expected case-insensitive match")
	}
}

func TestMatcherMultiWord(t *testing.T) {
	m := newMatcher("foo bar")
	if !m.isMatchString("foo_and_bar.txt") {
		t.Errorf("expected whitespace-separated words to match in order with filler between them")
	}
	if m.isMatchString("bar_and_foo.txt") {
		t.Errorf("expected order to matter across words")
	}
}

func TestMatcherEmptyQueryMatchesEverything(t *testing.T) {
	m := newMatcher("   ")
	if !m.isMatchString("anything") {
		t.Errorf("expected empty target to match any string")
	}
	if !m.isMatchString("") {
		t.Errorf("expected empty target to match empty string")
	}
}

func TestMatcherAutomatonContract(t *testing.T) {
	m := newMatcher("ab")
	start := m.Start()
	if m.IsMatch(start) {
		t.Errorf("start state should not already match a non-empty target")
	}
	if !m.CanMatch(start) {
		t.Errorf("CanMatch must always be true")
	}
	s1 := m.Accept(start, 'x')
	if s1 != start {
		t.Errorf("unrelated byte should not advance state")
	}
	s2 := m.Accept(start, 'A')
	s3 := m.Accept(s2, 'B')
	if !m.IsMatch(s3) {
		t.Errorf("expected accepting state after matching folded target bytes")
	}
	if !m.WillAlwaysMatch(s3) {
		t.Errorf("expected the accept state to be absorbing")
	}
}
