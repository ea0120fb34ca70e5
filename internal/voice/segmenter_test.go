package voice

import (
	"context"
	"strings"
	"testing"
)

func collectSentences(t *testing.T, frags ...string) []string {
	t.Helper()
	in := make(chan string)
	go func() {
		defer close(in)
		for _, f := range frags {
			in <- f
		}
	}()

	var got []string
	for s := range SegmentSentences(context.Background(), in) {
		got = append(got, s)
	}
	return got
}

func TestSegmentEmitsStreamingSentences(t *testing.T) {
	got := collectSentences(t, "Hello", " world.", " How are", " you?")
	want := []string{"Hello world.", "How are you?"}
	if len(got) != len(want) {
		t.Fatalf("sentences = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSegmentNoPunctuationFlushesOnce(t *testing.T) {
	got := collectSentences(t, "no punctuation ", "in this ", "response")
	if len(got) != 1 || got[0] != "no punctuation in this response" {
		t.Fatalf("sentences = %q, want single flush", got)
	}
}

func TestSegmentRightMostBoundaryWins(t *testing.T) {
	// Several boundaries in one fragment group into a single emission.
	got := collectSentences(t, "One. Two. Three.")
	if len(got) != 1 || got[0] != "One. Two. Three." {
		t.Fatalf("sentences = %q, want one grouped emission", got)
	}
}

func TestSegmentAbbreviationGuard(t *testing.T) {
	got := collectSentences(t, "Dr. Smith arrived.")
	if len(got) != 1 || got[0] != "Dr. Smith arrived." {
		t.Fatalf("sentences = %q, want exactly one", got)
	}
}

func TestSegmentDecimalGuard(t *testing.T) {
	got := collectSentences(t, "Pi is about 3.14 today.")
	if len(got) != 1 || got[0] != "Pi is about 3.14 today." {
		t.Fatalf("sentences = %q, want exactly one", got)
	}
}

func TestSegmentDecimalSplitAcrossFragments(t *testing.T) {
	// The fraction arrives in a later fragment; "3." must not be a boundary.
	got := collectSentences(t, "Pi is about 3.", "14 today.")
	if len(got) != 1 || got[0] != "Pi is about 3.14 today." {
		t.Fatalf("sentences = %q, want exactly one", got)
	}
}

func TestSegmentURLGuard(t *testing.T) {
	got := collectSentences(t, "Visit https://example.com/a.b", " now.")
	if len(got) != 1 || got[0] != "Visit https://example.com/a.b now." {
		t.Fatalf("sentences = %q, want exactly one", got)
	}
}

func TestSegmentEmailGuard(t *testing.T) {
	got := collectSentences(t, "Mail me at bob@example.com.")
	if len(got) != 1 || got[0] != "Mail me at bob@example.com." {
		t.Fatalf("sentences = %q, want exactly one", got)
	}
}

func TestSegmentFileExtensionGuard(t *testing.T) {
	got := collectSentences(t, "Open report.pdf first; then reply.")
	want := []string{"Open report.pdf first; then reply."}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("sentences = %q, want %q", got, want)
	}
}

func TestSegmentPreservesConcatenation(t *testing.T) {
	cases := [][]string{
		{"Hello world. ", "How are you? ", "Fine"},
		{"Dr. Smith ", "said pi is 3.14. ", "Check www.example.com", " too."},
		{"a", "b", "c"},
		{"One! Two? ", "Three: four; five."},
	}

	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\n' {
				return -1
			}
			return r
		}, s)
	}

	for _, frags := range cases {
		got := collectSentences(t, frags...)
		if strip(strings.Join(got, "")) != strip(strings.Join(frags, "")) {
			t.Fatalf("fragments %q: sentences %q do not reproduce input", frags, got)
		}
	}
}

func TestSegmentWhitespaceOnlyInputEmitsNothing(t *testing.T) {
	if got := collectSentences(t, "   ", "\n"); len(got) != 0 {
		t.Fatalf("sentences = %q, want none", got)
	}
}

func TestSegmentStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan string)
	out := SegmentSentences(ctx, in)

	cancel()
	if _, ok := <-out; ok {
		t.Fatalf("expected closed output after cancel")
	}
}
