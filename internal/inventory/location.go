package inventory

import (
	"fmt"
	"regexp"
)

const (
	pillarPrefix = "P-"
	multiPrefix  = "M-"

	// voltageLength is the length of the voltage suffix on pillar codes.
	voltageLength = 3

	// pillarHeadLength covers "P", the direction and four digits.
	pillarHeadLength = 6
)

var (
	pillarPattern = regexp.MustCompile(`^P[NESW]\d{4}`)
	multiPattern  = regexp.MustCompile(`^PMM\d0{4}$`)
)

// Location is a parsed location code as stored on an endpoint.
type Location struct {
	Prefix  string
	Code    string
	Form    string
	Voltage string
}

// ParseLocation parses a pillar socket code or a multi-item location.
//
// A pillar code PNaabb<form><vvv> becomes location "aaNbb" with prefix
// "P-", the socket form and the three-character voltage.
func ParseLocation(code string) (Location, error) {
	switch {
	case pillarPattern.MatchString(code):
		loc := Location{
			Prefix: pillarPrefix,
			Code:   code[2:4] + code[1:2] + code[4:6],
		}
		rest := code[pillarHeadLength:]
		if len(rest) >= voltageLength {
			loc.Form = rest[:len(rest)-voltageLength]
			loc.Voltage = rest[len(rest)-voltageLength:]
		} else {
			loc.Form = rest
		}
		return loc, nil

	case multiPattern.MatchString(code):
		return Location{Prefix: multiPrefix, Code: code}, nil

	default:
		return Location{}, fmt.Errorf("%w: %q", ErrBadLocation, code)
	}
}
