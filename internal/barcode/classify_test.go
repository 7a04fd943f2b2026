package barcode

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		payload string
		want    Kind
	}{
		{"", Unrecognized},

		// locations
		{"PN0102", Location},
		{"PS1234B12240", Location},
		{"PE0000", Location},
		{"PW9999", Location},
		{"PX0102", Unrecognized},
		{"PN012", Unrecognized},

		// multi-item locations
		{"PMM10000", MultiLocation},
		{"PMM90000", MultiLocation},
		{"PMM10001", Unrecognized},
		{"PMM100000", Unrecognized},

		// bare identifiers
		{"0123456789", Identifier},
		{"00AB12CDEF", Identifier},
		{"12345678", Identifier},
		{"1234567", Unrecognized},
		{"1234ABCD", Unrecognized},
		{"0123456789A", Unrecognized},
		{"00ab12cdef", Unrecognized},

		// prefixed identifiers
		{"T10123456789", Identifier},
		{"TQ00AB12CDEF", Identifier},
		{"X1FFFFFFFFFF", Identifier},
		{"TD0123456789", Identifier},
		{"ZZ0123456789", Unrecognized},
		{"T1012345678G", Unrecognized},
		{"T1012345678901", Unrecognized},
		{"T112345678", Unrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			if got := Classify(tt.payload); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  pn0102b12240\r\n"); got != "PN0102B12240" {
		t.Errorf("Normalize() = %q", got)
	}
	if got := Classify(Normalize(" t1 00ab12cdef")); got != Unrecognized {
		t.Errorf("inner whitespace must not be stripped, got %v", got)
	}
}

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		payload    string
		wantPrefix string
		wantNID    string
		wantErr    error
	}{
		{"0123456789", "", "0123456789", nil},
		{"T30123456789", "T3", "0123456789", nil},
		{"12345678", "ERT", "12345678", nil},
		{"PN0102", "", "", ErrNotIdentifier},
		{"ZZ0123456789", "", "", ErrNotIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			prefix, nid, err := SplitIdentifier(tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SplitIdentifier(%q) error = %v, want %v", tt.payload, err, tt.wantErr)
			}
			if prefix != tt.wantPrefix || nid != tt.wantNID {
				t.Errorf("SplitIdentifier(%q) = (%q, %q), want (%q, %q)",
					tt.payload, prefix, nid, tt.wantPrefix, tt.wantNID)
			}
		})
	}
}

func TestLookupProduct(t *testing.T) {
	p, err := LookupProduct("T4")
	if err != nil {
		t.Fatalf("LookupProduct(T4) error = %v", err)
	}
	if p.Name != "TC-1120-RD" || p.ID != "40" {
		t.Errorf("LookupProduct(T4) = %+v", p)
	}

	if p, err := LookupProduct("ERT"); err != nil || p.Name != "ERT" {
		t.Errorf("LookupProduct(ERT) = %+v, %v", p, err)
	}

	if _, err := LookupProduct("TD"); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("LookupProduct(TD) error = %v, want ErrUnknownProduct", err)
	}
}

func TestKind_String(t *testing.T) {
	if Location.String() != "location" || Kind(99).String() != "unrecognized" {
		t.Error("unexpected Kind names")
	}
	if !MultiLocation.IsLocation() || Identifier.IsLocation() {
		t.Error("IsLocation mismatch")
	}
}
