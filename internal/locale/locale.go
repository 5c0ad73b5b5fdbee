// Package locale holds the supported conversation languages, their speech tags
// and the localized strings the controller speaks in.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is a supported two-letter conversation language.
type Language string

const (
	Italian Language = "it"
	English Language = "en"
	Spanish Language = "es"
)

// Default is used when neither configuration nor the host locale picks a language.
const Default = Italian

// Supported lists the conversation languages in display order.
var Supported = []Language{Italian, English, Spanish}

var speechTags = map[Language]string{
	Italian: "it-IT",
	English: "en-US",
	Spanish: "es-ES",
}

// Tag returns the BCP-47 tag handed to speech engines (e.g. "it-IT").
func (l Language) Tag() string {
	if tag, ok := speechTags[l]; ok {
		return tag
	}
	return speechTags[Default]
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	_, ok := speechTags[l]
	return ok
}

func (l Language) String() string {
	return string(l)
}

// Parse maps any language code the service or the host may produce ("it",
// "IT", "es-419", "en_GB") onto a supported language. Codes outside the
// supported set report false.
func Parse(code string) (Language, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	lang := Language(base.String())
	if !lang.Valid() {
		return "", false
	}
	return lang, true
}

// Detect picks a supported language from POSIX locale variables, looked up
// through getenv. It returns false when nothing usable is set.
func Detect(getenv func(string) string) (Language, bool) {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG", "LANGUAGE"} {
		value := getenv(key)
		if value == "" {
			continue
		}
		// LANGUAGE is a colon separated priority list.
		for _, candidate := range strings.Split(value, ":") {
			if lang, ok := Parse(posixToTag(candidate)); ok {
				return lang, true
			}
		}
	}
	return "", false
}

// posixToTag turns "it_IT.UTF-8@euro" into "it_IT".
func posixToTag(value string) string {
	if i := strings.IndexAny(value, ".@"); i >= 0 {
		value = value[:i]
	}
	if value == "C" || value == "POSIX" {
		return ""
	}
	return value
}
