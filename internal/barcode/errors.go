package barcode

import "errors"

var (
	// ErrNotIdentifier is returned by SplitIdentifier for payloads that do
	// not classify as Identifier.
	ErrNotIdentifier = errors.New("barcode: not an identifier")

	// ErrUnknownProduct is returned by LookupProduct for prefixes outside
	// the product table.
	ErrUnknownProduct = errors.New("barcode: unknown product prefix")
)
