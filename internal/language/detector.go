// Package language classifies text and language tags into the two supported
// conversation languages.
package language

import (
	"errors"
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"

	"dualchat/internal/domain"
)

// ErrUnsupportedLanguage is returned for tags outside the supported pair.
var ErrUnsupportedLanguage = errors.New("unsupported language")

const (
	bengaliBlockStart = '\u0980'
	bengaliBlockEnd   = '\u09FF'
)

var (
	baseEnglish, _ = xlanguage.English.Base()
	baseBengali, _ = xlanguage.Bengali.Base()
)

// Detect returns LanguageBengali when text contains at least one code point
// of the Bengali block and the default language otherwise.
func Detect(text string) domain.Language {
	for _, r := range text {
		if r >= bengaliBlockStart && r <= bengaliBlockEnd {
			return domain.LanguageBengali
		}
	}
	return domain.DefaultLanguage
}

// FromTag maps a BCP 47 tag such as "bn-BD" or "en_IN" to its language.
func FromTag(tag string) (domain.Language, error) {
	parsed, err := xlanguage.Parse(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
	base, _ := parsed.Base()
	switch base {
	case baseEnglish:
		return domain.LanguageEnglish, nil
	case baseBengali:
		return domain.LanguageBengali, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
}

// Canonical returns the canonical form of a supported tag ("bn_bd" -> "bn-BD").
func Canonical(tag string) (string, error) {
	if _, err := FromTag(tag); err != nil {
		return "", err
	}
	parsed := xlanguage.Make(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	return parsed.String(), nil
}

// Matches reports whether tag is written in lang, ignoring region.
func Matches(tag string, lang domain.Language) bool {
	got, err := FromTag(tag)
	return err == nil && got == lang
}
