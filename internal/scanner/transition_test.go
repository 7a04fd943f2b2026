package scanner

import (
	"testing"

	"github.com/nerrad567/autoscan-core/internal/barcode"
)

func TestTransition(t *testing.T) {
	const (
		nid1  = "0123456789"
		nid2  = "ABCDEF0123"
		loc1  = "PN0102B230"
		loc2  = "PS0304A400"
		multi = "PMM10000"
	)

	ident := func(p string) *Scan { return &Scan{Payload: p, Kind: barcode.Identifier} }
	loc := func(p string) *Scan { return &Scan{Payload: p, Kind: barcode.Location} }
	mloc := func(p string) *Scan { return &Scan{Payload: p, Kind: barcode.MultiLocation} }

	tests := []struct {
		name        string
		pending     *Scan
		kind        barcode.Kind
		payload     string
		retainMulti bool
		wantOutcome Outcome
		wantPending *Scan
		wantTimer   TimerAction
		wantPair    *Pair
	}{
		{"nothing pending, identifier", nil, barcode.Identifier, nid1, true,
			Stored, ident(nid1), TimerArm, nil},
		{"nothing pending, location", nil, barcode.Location, loc1, true,
			Stored, loc(loc1), TimerArm, nil},
		{"same identifier twice", ident(nid1), barcode.Identifier, nid1, true,
			Completed, nil, TimerDisarm, &Pair{Identifier: nid1}},
		{"different identifier", ident(nid1), barcode.Identifier, nid2, true,
			Replaced, ident(nid2), TimerArm, nil},
		{"location after identifier", ident(nid1), barcode.Location, loc1, true,
			Replaced, loc(loc1), TimerArm, nil},
		{"same location twice", loc(loc1), barcode.Location, loc1, true,
			Replaced, loc(loc1), TimerArm, nil},
		{"new location", loc(loc1), barcode.Location, loc2, true,
			Replaced, loc(loc2), TimerArm, nil},
		{"identifier after location", loc(loc1), barcode.Identifier, nid1, true,
			Completed, nil, TimerDisarm, &Pair{Identifier: nid1, Location: loc1}},
		{"identifier after multi-location, retained", mloc(multi), barcode.Identifier, nid1, true,
			CompletedKeepPending, mloc(multi), TimerArm, &Pair{Identifier: nid1, Location: multi}},
		{"identifier after multi-location, not retained", mloc(multi), barcode.Identifier, nid1, false,
			Completed, nil, TimerDisarm, &Pair{Identifier: nid1, Location: multi}},
		{"multi-location replaces location", loc(loc1), barcode.MultiLocation, multi, true,
			Replaced, mloc(multi), TimerArm, nil},
		{"unrecognized with nothing pending", nil, barcode.Unrecognized, "XYZ", true,
			Rejected, nil, TimerKeep, nil},
		{"unrecognized keeps pending", loc(loc1), barcode.Unrecognized, "XYZ", true,
			Rejected, loc(loc1), TimerKeep, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transition(tt.pending, tt.kind, tt.payload, tt.retainMulti)

			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tt.wantOutcome)
			}
			if got.Timer != tt.wantTimer {
				t.Errorf("Timer = %v, want %v", got.Timer, tt.wantTimer)
			}
			if !equalScan(got.Pending, tt.wantPending) {
				t.Errorf("Pending = %+v, want %+v", got.Pending, tt.wantPending)
			}
			if !equalPair(got.Pair, tt.wantPair) {
				t.Errorf("Pair = %+v, want %+v", got.Pair, tt.wantPair)
			}
		})
	}
}

func TestTransition_RejectedKeepsPending(t *testing.T) {
	pending := &Scan{Payload: "PN0102", Kind: barcode.Location}
	got := Transition(pending, barcode.Unrecognized, "", true)
	if got.Pending != pending {
		t.Error("Rejected must hand back the same pending scan")
	}
}

func TestOutcome_IsCompleted(t *testing.T) {
	for _, o := range []Outcome{Stored, Replaced, Rejected} {
		if o.IsCompleted() {
			t.Errorf("%v.IsCompleted() = true", o)
		}
	}
	for _, o := range []Outcome{Completed, CompletedKeepPending} {
		if !o.IsCompleted() {
			t.Errorf("%v.IsCompleted() = false", o)
		}
	}
}

func equalScan(a, b *Scan) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalPair(a, b *Pair) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
