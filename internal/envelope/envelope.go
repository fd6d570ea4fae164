// Package envelope implements the structured message payload exchanged over
// chat transports: text plus an optional locale tag and geo coordinate.
package envelope

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Location is a raw coordinate pair carried by an inbound envelope. It is
// only ever consumed by the location resolver; coordinates are never
// forwarded downstream.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Envelope is the payload carried inside a transport message body.
type Envelope struct {
	Text     string    `json:"text"`
	Locale   string    `json:"lang,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// SupportedLocales is the fixed set of locale codes accepted on the wire.
var SupportedLocales = []string{
	"en-US", "ta-IN", "hi-IN", "es-ES", "fr-FR", "de-DE", "it-IT",
	"pt-PT", "ru-RU", "ja-JP", "ko-KR", "zh-CN", "ar-SA", "bn-IN",
	"te-IN", "mr-IN", "ml-IN", "kn-IN", "gu-IN",
}

// DefaultLocale is used when an envelope carries no recognised locale.
const DefaultLocale = "en-US"

// NormalizeLocale returns the locale if it is in the supported set,
// otherwise the default.
func NormalizeLocale(locale string) string {
	for _, l := range SupportedLocales {
		if l == locale {
			return l
		}
	}
	return DefaultLocale
}

// Decode parses a raw transport message body into an Envelope. It never
// fails: malformed input degrades to an envelope carrying the raw text
// verbatim with no locale or location.
func Decode(raw string) Envelope {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{Text: raw}
	}
	return env
}

// Encode serializes a response envelope. Responses use the
// {"lang": ..., "text": ...} shape exclusively.
func Encode(lang, text string) string {
	out, err := json.Marshal(struct {
		Lang string `json:"lang"`
		Text string `json:"text"`
	}{Lang: NormalizeLocale(lang), Text: text})
	if err != nil {
		return text
	}
	return string(out)
}

var textFieldStart = regexp.MustCompile(`"text"\s*:\s*"`)

// DecodeIncremental parses a possibly truncated JSON fragment produced
// mid-stream. It attempts a full parse first; on failure it extracts the
// text field value up to the last complete escape boundary so the caller
// never surfaces partial JSON syntax to the user. complete is true only
// when the fragment parsed as a whole envelope.
func DecodeIncremental(prefix string) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(prefix), &env); err == nil {
		return env, true
	}

	trimmed := strings.TrimSpace(prefix)
	loc := textFieldStart.FindStringIndex(trimmed)
	if loc == nil {
		if looksLikeObject(trimmed) {
			// An object is forming but no text value yet.
			return Envelope{Locale: extractLocale(trimmed)}, false
		}
		return Envelope{Text: prefix}, false
	}

	text, _ := scanStringValue(trimmed[loc[1]:])
	return Envelope{Text: text, Locale: extractLocale(trimmed)}, false
}

var langField = regexp.MustCompile(`"lang"\s*:\s*"([^"]*)"`)

func extractLocale(fragment string) string {
	m := langField.FindStringSubmatch(fragment)
	if m == nil {
		return ""
	}
	return m[1]
}

// scanStringValue consumes a JSON string body (opening quote already
// stripped) up to its closing quote or the end of the fragment, resolving
// the \n \t \" \\ escapes. A trailing lone backslash is an incomplete
// escape and is dropped.
func scanStringValue(s string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' {
			return sb.String(), true
		}
		if ch != '\\' {
			sb.WriteByte(ch)
			continue
		}
		if i == len(s)-1 {
			// Escape cut off by the fragment boundary.
			return sb.String(), false
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String(), false
}

func looksLikeObject(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "{")
}
