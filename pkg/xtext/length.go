// Package xtext implements the X platform text accounting rules.
package xtext

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPostLength is the platform ceiling on a single post.
	MaxPostLength = 280
	// LinkReservation is the fixed length the platform charges for any URL,
	// regardless of how long the URL actually is.
	LinkReservation = 23
)

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// ApproximateLength computes the platform-counted length of text: every
// URL-like substring counts as LinkReservation units and is removed before the
// remaining characters are counted.
func ApproximateLength(text string) int {
	length := 0
	remaining := text
	for _, match := range urlPattern.FindAllString(text, -1) {
		length += LinkReservation
		remaining = strings.Replace(remaining, match, "", 1)
	}
	return length + utf8.RuneCountInString(remaining)
}

// WithinLimit reports whether text fits inside the platform ceiling.
func WithinLimit(text string) bool {
	return ApproximateLength(text) <= MaxPostLength
}
