package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMessageBody(t *testing.T) {
	clean, err := SanitizeMessageBody("hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", clean)

	clean, err = SanitizeMessageBody(`before <script>alert("x")</script> after`)
	require.NoError(t, err)
	assert.NotContains(t, clean, "<script>")
	assert.Contains(t, clean, "before")
	assert.Contains(t, clean, "after")

	clean, err = SanitizeMessageBody(`<img src=x onerror=alert(1)>`)
	require.NoError(t, err)
	assert.NotContains(t, clean, "onerror=")
	assert.NotContains(t, clean, "<img")
}

func TestSanitizeMessageBody_Empty(t *testing.T) {
	_, err := SanitizeMessageBody("")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = SanitizeMessageBody("   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	// A body that is nothing but a script tag sanitizes down to empty.
	_, err = SanitizeMessageBody("<script>alert(1)</script>")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSanitizeMessageBody_TooLong(t *testing.T) {
	_, err := SanitizeMessageBody(strings.Repeat("a", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	clean, err := SanitizeMessageBody(strings.Repeat("a", MaxMessageLength))
	require.NoError(t, err)
	assert.Len(t, clean, MaxMessageLength)
}
