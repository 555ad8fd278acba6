// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ChunkLines splits text into chunks of at most maxLen bytes, breaking only
// at line boundaries. A single line longer than maxLen becomes its own
// (oversized) chunk rather than being cut mid-line. Used to respect the
// WhatsApp 4096-character message body limit when sending long lists.
func ChunkLines(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		need := len(line)
		if b.Len() > 0 {
			need++ // joining newline
		}
		if b.Len() > 0 && b.Len()+need > maxLen {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// MaskPhone redacts a phone number for logs, keeping only the last three
// digits ("61412345678" -> "********678"). Short values are fully masked.
func MaskPhone(s string) string {
	if len(s) <= 3 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-3) + s[len(s)-3:]
}
