package feedback

import (
	"time"

	"github.com/nerrad567/autoscan-core/internal/driver"
)

// Notification names a feedback pattern.
type Notification string

const (
	BarcodeFailure  Notification = "barcodeFailure"
	DatabaseFailure Notification = "databaseFailure"
	TryDatabase     Notification = "tryDatabase"
	GenericScan     Notification = "genericScan"
	DeviceReserved  Notification = "deviceReserved"
	TimerUp         Notification = "timerUp"
)

// Spec is what a notification does on the device. Nil fields are skipped.
type Spec struct {
	LEDOn  *driver.LEDMode
	LEDOff *driver.LEDMode
	Hold   time.Duration
	Beep   *driver.BeepPattern
}

// Table maps notification names to specs.
type Table map[Notification]Spec

func led(m driver.LEDMode) *driver.LEDMode { return &m }

func beep(p driver.BeepPattern) *driver.BeepPattern { return &p }

// DefaultTable returns a fresh copy of the standard notifications.
func DefaultTable() Table {
	return Table{
		BarcodeFailure: {
			LEDOn:  led(driver.LEDYellowOn),
			LEDOff: led(driver.LEDYellowOff),
			Hold:   300 * time.Millisecond,
			Beep:   beep(driver.BeepOneLowLong),
		},
		DatabaseFailure: {
			LEDOn:  led(driver.LEDRedOn),
			LEDOff: led(driver.LEDRedOff),
			Hold:   300 * time.Millisecond,
			Beep:   beep(driver.BeepTwoLowLong),
		},
		TryDatabase: {
			LEDOn:  led(driver.LEDGreenOn),
			LEDOff: led(driver.LEDGreenOff),
			Hold:   time.Second,
		},
		GenericScan: {
			Beep: beep(driver.BeepOneHighShort),
		},
		DeviceReserved: {
			LEDOn:  led(driver.LEDRedOn),
			LEDOff: led(driver.LEDRedOff),
			Hold:   300 * time.Millisecond,
			Beep:   beep(driver.BeepThreeHighShort),
		},
		TimerUp: {
			Beep: beep(driver.BeepHighLow),
		},
	}
}

// clone deep-copies t so later edits to the source cannot leak in.
func (t Table) clone() Table {
	out := make(Table, len(t))
	for name, spec := range t {
		c := Spec{Hold: spec.Hold}
		if spec.LEDOn != nil {
			c.LEDOn = led(*spec.LEDOn)
		}
		if spec.LEDOff != nil {
			c.LEDOff = led(*spec.LEDOff)
		}
		if spec.Beep != nil {
			c.Beep = beep(*spec.Beep)
		}
		out[name] = c
	}
	return out
}
