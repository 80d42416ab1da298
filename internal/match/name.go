package match

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const MaxNameLength = 24

// NormalizeName trims and NFC-normalizes a display name, strips control
// characters and caps its length. Empty names fall back to "Player N".
func NormalizeName(name string, slot int) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	if name == "" {
		return fmt.Sprintf("Player %d", slot+1)
	}
	return name
}
