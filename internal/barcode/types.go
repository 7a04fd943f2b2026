package barcode

// Kind is the semantic type of a scanned payload.
type Kind int

const (
	// Unrecognized is the zero value so an unset Kind never pairs.
	Unrecognized Kind = iota
	Location
	MultiLocation
	Identifier
)

// String returns the kind name used in logs and history records.
func (k Kind) String() string {
	switch k {
	case Location:
		return "location"
	case MultiLocation:
		return "multi_location"
	case Identifier:
		return "identifier"
	default:
		return "unrecognized"
	}
}

// IsLocation reports whether k opens a pairing episode.
func (k Kind) IsLocation() bool {
	return k == Location || k == MultiLocation
}

// Product describes the item type encoded by an identifier prefix.
type Product struct {
	Name string
	ID   string
}
