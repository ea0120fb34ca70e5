package voice

import (
	"context"
	"regexp"
	"strings"
)

// Sentence-terminal punctuation recognized by the segmenter. The set
// matches what synthesis engines treat as prosodic breaks.
const terminalMarks = ".?!:;"

var abbreviationPattern = regexp.MustCompile(`^[A-Z][a-z]+$`)

// SegmentSentences converts a fragment stream from the generator into a
// sentence stream without buffering the whole response. After each
// fragment it emits through the right-most qualifying boundary, favoring
// fewer, more natural-sounding units over minimal latency; at end of
// stream any non-whitespace remainder becomes a final sentence.
//
// Each call starts with an empty buffer; the returned channel is finite
// and closed when the fragment stream ends or ctx is cancelled.
func SegmentSentences(ctx context.Context, fragments <-chan string) <-chan string {
	out := make(chan string, 8)
	go func() {
		defer close(out)
		var buf string

		emit := func(text string) bool {
			text = strings.TrimSpace(text)
			if text == "" {
				return true
			}
			select {
			case out <- text:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case frag, ok := <-fragments:
				if !ok {
					emit(buf)
					return
				}
				buf += frag
				if i := lastBoundary(buf); i >= 0 {
					if !emit(buf[:i+1]) {
						return
					}
					buf = buf[i+1:]
				}
			}
		}
	}()
	return out
}

// lastBoundary returns the index of the right-most sentence-terminal mark
// in buf that qualifies as a true boundary, or -1.
func lastBoundary(buf string) int {
	for i := len(buf) - 1; i >= 0; i-- {
		if strings.IndexByte(terminalMarks, buf[i]) < 0 {
			continue
		}
		if boundaryQualifies(buf, i) {
			return i
		}
	}
	return -1
}

func boundaryQualifies(buf string, i int) bool {
	// A mark glued to following text belongs to a larger token: a URL
	// path or query, an email domain, a file name, a decimal fraction.
	if i+1 < len(buf) && (isAlnum(buf[i+1]) || buf[i+1] == '/') {
		return false
	}

	word := trailingToken(buf, i)

	// "https:" at the buffer end is a URL still being streamed.
	atEnd := i+1 == len(buf)
	if atEnd {
		lower := strings.ToLower(word)
		if lower == "http" || lower == "https" || lower == "www" {
			return false
		}
	}

	if buf[i] != '.' {
		return true
	}

	// Abbreviation: a capitalized short word before the period ("Dr.",
	// "Mr.", "Prof.") is not a sentence end.
	if abbreviationPattern.MatchString(word) {
		return false
	}
	// A digit right before a period at the buffer end may be a decimal
	// whose fraction has not streamed in yet; hold until more arrives.
	if atEnd && i > 0 && isDigit(buf[i-1]) {
		return false
	}
	// Emails and URLs keep their trailing dots until whitespace proves
	// the token is finished.
	if atEnd && (strings.Contains(word, "@") || hasURLPrefix(word)) {
		return false
	}
	return true
}

// trailingToken returns the whitespace-delimited token ending just before
// position i.
func trailingToken(buf string, i int) string {
	start := i
	for start > 0 && !isSpace(buf[start-1]) {
		start--
	}
	return buf[start:i]
}

func hasURLPrefix(word string) bool {
	lower := strings.ToLower(word)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "www.")
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
