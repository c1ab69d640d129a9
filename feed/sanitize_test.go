package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "thanks for the music", "thanks for the music"},
		{"strips markup", "<b>hi</b>", "hi"},
		{"strips nested markup", `<a href="http://evil">click<img src=x></a>`, "click"},
		{"collapses whitespace", "gm \n\t  fren", "gm fren"},
		{"trims", "  padded  ", "padded"},
		{"empty", "", ""},
		{"only markup", "<script>alert(1)</script>", "alert(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeMessage(tt.in))
		})
	}
}

func TestSanitizeMessageCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SanitizeMessage(long)

	runes := []rune(got)
	assert.Len(t, runes, 241)
	assert.Equal(t, '…', runes[240])

	// multi-byte runes count as one
	unicode := strings.Repeat("é", 240)
	assert.Equal(t, unicode, SanitizeMessage(unicode))
}
