package domain

import (
	"fmt"
	"strings"
)

// Language identifies the scripting language a program is written in.
type Language string

const (
	LanguageJS Language = "js"
	LanguageTS Language = "ts"
	LanguagePy Language = "py"
)

// Family groups languages that share an interpreter and harness.
type Family string

const (
	FamilyNode   Family = "node"
	FamilyPython Family = "python"
)

// ParseLanguage accepts the wire tags and their common long names.
func ParseLanguage(raw string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "js", "javascript", "mjs", "node":
		return LanguageJS, nil
	case "ts", "typescript":
		return LanguageTS, nil
	case "py", "python", "python3":
		return LanguagePy, nil
	default:
		return "", fmt.Errorf("unsupported language %q", raw)
	}
}

func (l Language) Valid() bool {
	switch l {
	case LanguageJS, LanguageTS, LanguagePy:
		return true
	default:
		return false
	}
}

func (l Language) Family() Family {
	if l == LanguagePy {
		return FamilyPython
	}
	return FamilyNode
}

func (l Language) String() string {
	return string(l)
}
