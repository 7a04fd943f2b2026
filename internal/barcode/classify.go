package barcode

import (
	"regexp"
	"strings"
)

const (
	minLength = 8
	maxLength = 12
	nidLength = 10

	// ertLength is the length of a bare ERT identifier.
	ertLength = 8
)

var (
	locationPattern      = regexp.MustCompile(`^P[NESW]\d{4}`)
	multiLocationPattern = regexp.MustCompile(`^PMM\d0{4}$`)
	hexNIDPattern        = regexp.MustCompile(`^[0-9A-F]{10}$`)
	ertPattern           = regexp.MustCompile(`^\d{8}$`)
)

// identifierPrefixes are the product-type prefixes a long identifier
// label may carry. TD is accepted by the scanner side but has no product
// entry.
var identifierPrefixes = map[string]bool{
	"T1": true, "T2": true, "T3": true, "T4": true, "T5": true,
	"T6": true, "TQ": true, "X1": true, "TD": true,
}

// Normalize uppercases and trims a raw payload.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Classify returns the kind of a normalized payload. First match wins.
func Classify(payload string) Kind {
	if locationPattern.MatchString(payload) {
		return Location
	}
	if multiLocationPattern.MatchString(payload) {
		return MultiLocation
	}

	if _, ok := stripPrefix(payload); ok {
		return Identifier
	}
	return Unrecognized
}

// stripPrefix removes a known product prefix and reports whether the
// remainder is a well-formed NID.
func stripPrefix(payload string) (string, bool) {
	n := len(payload)
	if n < minLength || n > maxLength {
		return "", false
	}

	rest := payload
	if n > nidLength {
		if !identifierPrefixes[payload[:n-nidLength]] {
			return "", false
		}
		rest = payload[n-nidLength:]
	}

	if hexNIDPattern.MatchString(rest) || ertPattern.MatchString(rest) {
		return rest, true
	}
	return "", false
}

// SplitIdentifier separates an identifier payload into its product prefix
// and NID. Twelve-character labels carry a two-character prefix and eight
// digit labels are ERTs; ten-character labels have no prefix.
func SplitIdentifier(payload string) (prefix, nid string, err error) {
	nid, ok := stripPrefix(payload)
	if !ok {
		return "", "", ErrNotIdentifier
	}

	switch len(payload) {
	case maxLength:
		prefix = payload[:maxLength-nidLength]
	case ertLength:
		prefix = "ERT"
	}
	return prefix, nid, nil
}
