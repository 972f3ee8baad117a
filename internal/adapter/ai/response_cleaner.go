// Package ai turns loosely structured model output into typed results.
//
// The parsing functions (ExtractText, RecoverJSON, ParseTrainingFeedback,
// ExtractSuggestions) are pure: no I/O and no shared state, so they are safe
// to call from any goroutine. NewGenerationCache is the only stateful piece.
package ai

import (
	"strings"
)

// RecoverJSON normalizes generated text that should hold one JSON object.
// It removes markdown fences, trims to the outermost brace span, and replaces
// raw line breaks inside string literals with spaces. The result may still be
// invalid JSON (a truncated response stays truncated); decoding decides that.
// RecoverJSON(RecoverJSON(x)) == RecoverJSON(x).
func RecoverJSON(text string) string {
	text = removeMarkdownBlocks(text)
	text = strings.TrimSpace(text)
	text = trimToBraces(text)
	return sanitizeNewlines(text)
}

// removeMarkdownBlocks drops every fence marker, not only leading/trailing ones.
func removeMarkdownBlocks(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}

// trimToBraces keeps the span from the first '{' to the last '}'.
// Without a '{' the text is returned unchanged; without a '}' after it the tail is kept.
func trimToBraces(s string) string {
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return s
}

type scanState int

const (
	scanPlain scanState = iota
	scanInString
	scanEscaped
)

// step advances the scanner over one byte and returns the byte to emit.
// Multi-byte UTF-8 sequences never contain '"', '\\', '\n' or '\r' bytes,
// so a byte-wise scan is safe.
func (st scanState) step(c byte) (scanState, byte) {
	switch st {
	case scanInString:
		switch c {
		case '\\':
			return scanEscaped, c
		case '"':
			return scanPlain, c
		case '\n', '\r':
			return scanInString, ' '
		}
		return scanInString, c
	case scanEscaped:
		return scanInString, c
	default:
		if c == '"' {
			return scanInString, c
		}
		return scanPlain, c
	}
}

// sanitizeNewlines rewrites unescaped CR/LF inside string literals as a single space each.
func sanitizeNewlines(s string) string {
	if !strings.ContainsAny(s, "\n\r") {
		return s
	}
	out := make([]byte, len(s))
	st := scanPlain
	for i := 0; i < len(s); i++ {
		st, out[i] = st.step(s[i])
	}
	return string(out)
}
