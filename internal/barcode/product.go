package barcode

import "fmt"

var products = map[string]Product{
	"T1":  {Name: "TC-1116", ID: "16"},
	"T2":  {Name: "TC-1216", ID: "3"},
	"T3":  {Name: "TC-1120", ID: "39"},
	"T4":  {Name: "TC-1120-RD", ID: "40"},
	"T5":  {Name: "TC-1220", ID: "41"},
	"T6":  {Name: "TC-1220-RD", ID: "42"},
	"TQ":  {Name: "PP-1316", ID: "12"},
	"X1":  {Name: "XR-3100", ID: "14"},
	"ERT": {Name: "ERT", ID: ""},
}

// LookupProduct returns the product for an identifier prefix.
func LookupProduct(prefix string) (Product, error) {
	p, ok := products[prefix]
	if !ok {
		return Product{}, fmt.Errorf("%w: %q", ErrUnknownProduct, prefix)
	}
	return p, nil
}
