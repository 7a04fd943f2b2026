// Package barcode classifies scanner payloads.
//
// A payload is one of four kinds:
//
//	Location       pillar socket code, e.g. PN0102B12240
//	MultiLocation  multi-item location, e.g. PMM10000
//	Identifier     item NID, with an optional product-type prefix
//	Unrecognized   anything else
//
// Classify is pure and assumes its input has been through Normalize.
// SplitIdentifier and LookupProduct recover the product type that some
// identifier labels carry in their leading characters.
package barcode
