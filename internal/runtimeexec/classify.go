package runtimeexec

import (
	"strings"

	"github.com/nereus-labs/nautilus-go/internal/domain"
)

// Classify guesses the language of source. The checks run in order and the
// result is always a language; JS is the fallback. Programs that need exact
// routing should be registered with an explicit language instead.
func Classify(source string) domain.Language {
	trimmed := strings.TrimSpace(source)
	switch {
	case strings.Contains(trimmed, "def main"):
		return domain.LanguagePy
	case strings.Contains(trimmed, "export"), strings.Contains(trimmed, "async function main"):
		return domain.LanguageJS
	case strings.Contains(trimmed, "function main"):
		return domain.LanguageJS
	default:
		return domain.LanguageJS
	}
}
