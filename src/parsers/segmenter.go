package parsers

import "strings"

// ExtractSection locates the first case-insensitive occurrence of header in
// text and returns everything after it up to the earliest occurrence of any
// stop header, or end of text. The second return is false when the header
// itself is absent; callers treat that as "zero records", not a failure.
//
// The scan is a plain position search over the lowercased document rather
// than a lookahead pattern, so large documents are segmented in one pass.
func ExtractSection(text, header string, stopHeaders []string) (string, bool) {
	lowerText := strings.ToLower(text)
	idx := strings.Index(lowerText, strings.ToLower(header))
	if idx < 0 {
		return "", false
	}

	start := idx + len(header)
	content := text[start:]
	lowerContent := lowerText[start:]

	end := len(content)
	for _, stop := range stopHeaders {
		if i := strings.Index(lowerContent, strings.ToLower(stop)); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(content[:end]), true
}
