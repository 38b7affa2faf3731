// Package i18n resolves user-supplied language preferences onto the display
// languages the application ships text for.
package i18n

import (
	"strings"

	"github.com/phrazzld/arcana/internal/domain"
	"golang.org/x/text/language"
)

var supportedTags = []language.Tag{
	language.English,
	language.Chinese,
}

var tagMatcher = language.NewMatcher(supportedTags)

// Supported returns the list of supported language tags.
func Supported() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// Default returns the default language tag.
func Default() language.Tag {
	return language.English
}

// Code returns the short code ("en" or "zh") stored for a supported tag.
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Normalize validates a language setting and returns its short code. Only
// tags whose base language is supported are accepted, so "zh-CN" becomes "zh"
// and "fr" is rejected.
func Normalize(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.NewValidationError("language", "language is required", domain.ErrInvalidLanguage)
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", domain.NewValidationError("language", "malformed language tag", domain.ErrInvalidLanguage)
	}
	base, _ := tag.Base()
	for _, s := range supportedTags {
		sb, _ := s.Base()
		if sb == base {
			return sb.String(), nil
		}
	}
	return "", domain.NewValidationError("language", "language must be en or zh", domain.ErrInvalidLanguage)
}

// Match picks the best supported language for a list of preferences such as
// an Accept-Language header or the LANG environment variable. Unparseable
// input yields the default.
func Match(preference string) string {
	preference = strings.TrimSpace(preference)
	if preference == "" {
		return Code(Default())
	}
	// POSIX locales look like zh_CN.UTF-8
	if i := strings.IndexByte(preference, '.'); i >= 0 {
		preference = preference[:i]
	}
	preference = strings.ReplaceAll(preference, "_", "-")

	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil || len(tags) == 0 {
		return Code(Default())
	}
	_, index, confidence := tagMatcher.Match(tags...)
	if confidence == language.No {
		return Code(Default())
	}
	return Code(supportedTags[index])
}
