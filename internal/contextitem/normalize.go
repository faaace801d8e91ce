package contextitem

import (
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// DefaultWorkspace is used when no workspace is given.
const DefaultWorkspace = "default"

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NormalizeWorkspace normalizes a workspace name, defaulting to "default".
func NormalizeWorkspace(s string) string {
	if n := Normalize(s); n != "" {
		return n
	}
	return DefaultWorkspace
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// EstimateSize approximates the token count of text as ceil(len/4), where
// len counts UTF-16 code units. ASCII text weighs one unit per byte; a
// character outside the Basic Multilingual Plane weighs two. Invalid UTF-8
// weighs one unit per bad byte. Units never exceed the byte length, so
// (bytes+3)/4 bounds the result.
func EstimateSize(text string) int {
	return (UTF16Len(text) + 3) / 4
}

// UTF16Len returns the length of text in UTF-16 code units.
func UTF16Len(text string) int {
	if isASCII(text) {
		return len(text)
	}
	n := 0
	for _, r := range text {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
