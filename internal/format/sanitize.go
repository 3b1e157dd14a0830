package format

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackName is used when nothing storable survives sanitising.
const fallbackName = "upload"

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename maps an untrusted filename to a single safe path
// component. It never fails: when nothing usable is left the result is
// "upload", keeping the original extension if that extension is itself safe.
func SanitizeFilename(name string) string {
	ascii := toASCII(name)

	// Separators become spaces so "a/b.png" reads as "a_b.png", not "b.png".
	ascii = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii)
	ascii = strings.Join(strings.Fields(ascii), "_")

	var b strings.Builder
	for _, r := range ascii {
		if r < unicode.MaxASCII && (r == '_' || r == '.' || r == '-' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			b.WriteRune(r)
		}
	}
	safe := strings.Trim(b.String(), "._")

	// Nothing left, or only the extension survived ("日本語.png" -> "png").
	ext := Extension(name)
	if safe == "" || (ext != "" && strings.EqualFold(safe, ext)) {
		if ext != "" && isSafeExtension(ext) {
			return fallbackName + "." + ext
		}
		if safe != "" {
			return safe
		}
		return fallbackName
	}

	stem := strings.ToUpper(strings.SplitN(safe, ".", 2)[0])
	if _, reserved := windowsDeviceNames[stem]; reserved {
		safe = "_" + safe
	}
	return safe
}

// toASCII decomposes name (NFKD), drops combining marks and then every
// remaining non-ASCII rune.
func toASCII(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, name)
	if err != nil {
		return ""
	}
	return out
}

func isSafeExtension(ext string) bool {
	for _, r := range ext {
		if !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') {
			return false
		}
	}
	return true
}
