package voices

import (
	"strings"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

// Match describes which rule of the fallback chain picked a voice.
type Match string

const (
	MatchNone   Match = ""
	MatchExact  Match = "exact"
	MatchBroad  Match = "language"
	MatchLocale Match = "locale"
	MatchAny    Match = "fallback"
)

// Select picks the best voice for lang. The chain is: exact tag, same
// two-letter language, same two-letter language as systemLocale, then the
// catalog default or first voice. Within each rule a default-flagged voice
// wins over catalog order. It returns false only for an empty catalog.
func Select(catalog []engine.Voice, lang, systemLocale string) (engine.Voice, bool) {
	v, m := SelectWithMatch(catalog, lang, systemLocale)
	return v, m != MatchNone
}

// SelectWithMatch is Select that also reports the rule that matched.
func SelectWithMatch(catalog []engine.Voice, lang, systemLocale string) (engine.Voice, Match) {
	if len(catalog) == 0 {
		return engine.Voice{}, MatchNone
	}

	if v, ok := pick(catalog, func(v engine.Voice) bool { return v.Language == lang }); ok {
		return v, MatchExact
	}

	broad := prefix(lang)
	if v, ok := pick(catalog, func(v engine.Voice) bool { return strings.HasPrefix(v.Language, broad) }); ok {
		return v, MatchBroad
	}

	if systemLocale != "" {
		loc := prefix(systemLocale)
		if v, ok := pick(catalog, func(v engine.Voice) bool { return strings.HasPrefix(v.Language, loc) }); ok {
			return v, MatchLocale
		}
	}

	v, _ := pick(catalog, func(engine.Voice) bool { return true })
	return v, MatchAny
}

// pick returns the default-flagged voice among those matching keep, or the
// first match in catalog order.
func pick(catalog []engine.Voice, keep func(engine.Voice) bool) (engine.Voice, bool) {
	first := -1
	for i, v := range catalog {
		if !keep(v) {
			continue
		}
		if v.Default {
			return v, true
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return engine.Voice{}, false
	}
	return catalog[first], true
}

func prefix(tag string) string {
	if len(tag) < 2 {
		return tag
	}
	return tag[:2]
}
