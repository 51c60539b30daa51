package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Message length limits
const (
	MaxMessageLength = 8000
	MinMessageLength = 1
)

// Dangerous patterns for XSS prevention
var (
	scriptTagRegex = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	onEventRegex   = regexp.MustCompile(`(?i)\s+on\w+\s*=`)
)

var ErrEmptyMessage = errors.New("message cannot be empty")
var ErrMessageTooLong = errors.New("message exceeds maximum length")

// SanitizeMessageBody cleans and validates a message body before it is
// persisted. Sanitization is a required pre-commit step: the store never
// writes a raw body.
func SanitizeMessageBody(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}

	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrMessageTooLong
	}

	// Remove script tags
	body = scriptTagRegex.ReplaceAllString(body, "")

	// Remove inline event handlers (onclick, onload, etc.)
	body = onEventRegex.ReplaceAllString(body, " ")

	// Escape HTML entities to prevent XSS
	body = html.EscapeString(body)

	body = strings.TrimSpace(body)

	if body == "" {
		return "", ErrEmptyMessage
	}

	return body, nil
}
