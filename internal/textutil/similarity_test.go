package textutil

import (
	"math"
	"testing"
)

func TestScoreIdentical(t *testing.T) {
	for _, name := range []string{"attack on titan", "a", "進撃の巨人", ""} {
		if got := Score(name, name); got != 1 {
			t.Errorf("Score(%q, %q) = %v, want 1", name, name, got)
		}
	}
}

func TestScoreEmptyNeverMatches(t *testing.T) {
	if got := Score("", "frieren"); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestScoreSubstringFloor(t *testing.T) {
	got := Score("frieren", "frieren beyond journey s end")
	if got < SubstringFloor {
		t.Fatalf("substring should score at least %v, got %v", SubstringFloor, got)
	}
}

func TestScoreWordOrderIndependent(t *testing.T) {
	got := Score("kyojin shingeki", "shingeki kyojin")
	if math.Abs(got-WordOverlapWeight) > 1e-9 && got < WordOverlapWeight {
		t.Fatalf("reordered words should score at least %v, got %v", WordOverlapWeight, got)
	}
	if got >= 1 {
		t.Fatalf("reordered words should not be an exact match, got %v", got)
	}
}

func TestScoreUnrelatedIsLow(t *testing.T) {
	if got := Score("attack on titan", "mushishi"); got >= 0.5 {
		t.Fatalf("unrelated names scored %v", got)
	}
}

func TestScoreBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"},
		{"one piece", "one punch man"},
		{"re zero", "zero"},
		{"x", "xxxxxxxxxxxxxxxx"},
	}
	for _, p := range pairs {
		got := Score(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Score(%q, %q) = %v out of range", p[0], p[1], got)
		}
		if rev := Score(p[1], p[0]); math.Abs(rev-got) > 1e-9 {
			t.Errorf("Score not symmetric for %q/%q: %v vs %v", p[0], p[1], got, rev)
		}
	}
}

func TestSequenceRatio(t *testing.T) {
	if got := SequenceRatio("abcd", "abcd"); got != 1 {
		t.Fatalf("identical ratio = %v", got)
	}
	// LCS("abcd", "abxd") = 3 -> 6/8
	if got := SequenceRatio("abcd", "abxd"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("ratio = %v, want 0.75", got)
	}
}

func TestWordOverlap(t *testing.T) {
	if got := WordOverlap("one piece film", "one piece"); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("overlap = %v, want 2/3", got)
	}
	if got := WordOverlap("", "one"); got != 0 {
		t.Fatalf("overlap with empty = %v", got)
	}
}
