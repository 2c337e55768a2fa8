package textmatch

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestRatioBounds(t *testing.T) {
	if got := Ratio("Reincarnated as a Sword", "reincarnated as a sword!"); got != 1 {
		t.Fatalf("expected identical normalized strings to score 1, got %v", got)
	}
	if got := Ratio("", "anything"); got != 0 {
		t.Fatalf("expected empty input to score 0, got %v", got)
	}
	if got := Ratio("!!!", "anything"); got != 0 {
		t.Fatalf("expected punctuation-only input to score 0, got %v", got)
	}
	if got := Ratio("abcd", "wxyz"); got != 0 {
		t.Fatalf("expected disjoint strings to score 0, got %v", got)
	}
}

func TestRatioKnownValue(t *testing.T) {
	// "abcd" vs "bcde": three matched characters out of eight total.
	if got := Ratio("abcd", "bcde"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("Ratio(abcd, bcde) = %v, want 0.75", got)
	}
}

func TestRatioSymmetricAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.StringMatching(`[a-e ]{0,12}`).Draw(t, "a")
		b := rapid.StringMatching(`[a-e ]{0,12}`).Draw(t, "b")
		ab, ba := Ratio(a, b), Ratio(b, a)
		if ab != ba {
			t.Fatalf("Ratio(%q, %q) = %v but reversed = %v", a, b, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("Ratio(%q, %q) = %v out of range", a, b, ab)
		}
	})
}
