package feed

import (
	"regexp"
	"strings"

	"github.com/gftj/tipjar-go/internal/constants"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeMessage prepares a raw on-chain tip message for display:
// markup is stripped, whitespace collapsed, and the result capped at
// a fixed rune length with a trailing ellipsis.
func SanitizeMessage(raw string) string {
	s := tagPattern.ReplaceAllString(raw, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > constants.MaxTipMessageRunes {
		s = string(runes[:constants.MaxTipMessageRunes]) + "…"
	}
	return s
}
