package speech

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// FallbackLocale is used for languages without a recognizer locale.
const FallbackLocale = "en-US"

var locales = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"pt": "pt-PT",
	"bn": "bn-IN",
	"ta": "ta-IN",
	"te": "te-IN",
	"mr": "mr-IN",
	"pa": "pa-IN",
	"gu": "gu-IN",
}

// LocaleFor maps an application language ("hi", "HI", "hi_IN") to a
// recognizer locale. It never fails.
func LocaleFor(lang string) string {
	base := BaseLanguage(lang)
	if loc, ok := locales[base]; ok {
		return loc
	}
	return FallbackLocale
}

// BaseLanguage returns the lower-case ISO 639 base of lang, or "" when lang
// is not a well-formed tag.
func BaseLanguage(lang string) string {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// Languages lists the application languages with a dedicated locale.
func Languages() []string {
	out := make([]string, 0, len(locales))
	for k := range locales {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
