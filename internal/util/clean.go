package util

import "strings"

// Fence markers removed from the start of a response, most specific first
var fencePrefixes = []string{"```json", "```text", "```"}

// CleanResponse turns raw backend output into a best-effort parseable payload.
// It drops reasoning blocks and a surrounding code fence; for JSON output it
// also removes // and /* */ comments that sit outside string literals.
// The result is not guaranteed to be valid JSON.
func CleanResponse(raw, format string) string {
	s := StripThinkTags(raw)
	s = stripFence(s)
	if format != "text" {
		s = StripJSONComments(s)
	}
	return strings.TrimSpace(s)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range fencePrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// StripJSONComments removes line and block comments outside JSON strings.
// An unterminated block comment swallows the rest of the input.
func StripJSONComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				end := strings.IndexByte(s[i:], '\n')
				if end == -1 {
					return b.String()
				}
				// land on the newline so it is kept
				i += end - 1
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end == -1 {
					return b.String()
				}
				i += 2 + end + 1
				continue
			}
		}

		b.WriteByte(ch)
	}

	return b.String()
}
