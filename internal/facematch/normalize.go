package facematch

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownLabel is the identity returned for unmatched faces and cannot be enrolled.
const UnknownLabel = "unknown"

const maxLabelLength = 128

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// LabelKey folds a label for duplicate detection (lowercase, no diacritics, spaces for dashes).
// "Jiří Novák" and "jiri-novak" share a key.
func LabelKey(label string) string {
	label = RemoveDiacritics(label)
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "-", " ")
	return label
}

// NormalizeLabel returns the canonical NFC form of an identity label. Case is kept.
func NormalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(norm.NFC.String(label))

	switch {
	case label == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidLabel)
	case strings.EqualFold(label, UnknownLabel):
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidLabel, UnknownLabel)
	case strings.HasPrefix(label, "."):
		return "", fmt.Errorf("%w: must not start with a dot", ErrInvalidLabel)
	case strings.ContainsAny(label, `/\`):
		return "", fmt.Errorf("%w: must not contain path separators", ErrInvalidLabel)
	case len(label) > maxLabelLength:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidLabel, maxLabelLength)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: contains control characters", ErrInvalidLabel)
		}
	}
	return label, nil
}
