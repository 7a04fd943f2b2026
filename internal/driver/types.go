package driver

import (
	"context"
	"fmt"
	"time"
)

// LEDMode is a vendor LED command code.
type LEDMode int

// LED command codes understood by the vendor driver.
const (
	LEDGreenOff  LEDMode = 42
	LEDGreenOn   LEDMode = 43
	LEDYellowOn  LEDMode = 45
	LEDYellowOff LEDMode = 46
	LEDRedOn     LEDMode = 47
	LEDRedOff    LEDMode = 48
)

func (m LEDMode) String() string {
	switch m {
	case LEDGreenOff:
		return "green_off"
	case LEDGreenOn:
		return "green_on"
	case LEDYellowOn:
		return "yellow_on"
	case LEDYellowOff:
		return "yellow_off"
	case LEDRedOn:
		return "red_on"
	case LEDRedOff:
		return "red_off"
	default:
		return fmt.Sprintf("led(%d)", int(m))
	}
}

// BeepPattern is a vendor beeper command code.
type BeepPattern int

// Beep patterns understood by the vendor driver.
const (
	BeepOneHighShort BeepPattern = iota
	BeepTwoHighShort
	BeepThreeHighShort
	BeepFourHighShort
	BeepFiveHighShort
	BeepOneLowShort
	BeepTwoLowShort
	BeepThreeLowShort
	BeepFourLowShort
	BeepFiveLowShort
	BeepOneHighLong
	BeepTwoHighLong
	BeepThreeHighLong
	BeepFourHighLong
	BeepFiveHighLong
	BeepOneLowLong
	BeepTwoLowLong
	BeepThreeLowLong
	BeepFourLowLong
	BeepFiveLowLong
	BeepFastWarble
	BeepSlowWarble
	BeepHighLow
	BeepLowHigh
	BeepHighLowHigh
	BeepLowHighLow
)

// Attribute is a single device attribute write.
// Type is the driver's one-letter type code (B, F, W, D or S).
type Attribute struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DeviceInfo describes one attached device as reported by the gateway.
type DeviceInfo struct {
	ID       uint32 `json:"scanner_id"`
	Model    string `json:"model_number"`
	Serial   string `json:"serial_number,omitempty"`
	HostMode string `json:"host_mode,omitempty"`
}

// Scan is one decoded barcode from the multiplexed scan stream.
// Data still carries the device's routing prefix.
type Scan struct {
	ScannerID uint32
	Data      string
	Timestamp time.Time
}

// PnPKind distinguishes attach from detach.
type PnPKind string

const (
	PnPAttached PnPKind = "attached"
	PnPDetached PnPKind = "detached"
)

// PnPEvent reports a device attach or detach together with the device
// list as it stands after the change.
type PnPEvent struct {
	Kind      PnPKind
	ScannerID uint32
	Devices   []DeviceInfo
}

// Driver is everything the core needs from the vendor driver.
type Driver interface {
	// Devices returns the currently attached devices.
	Devices(ctx context.Context) ([]DeviceInfo, error)

	SetAttribute(ctx context.Context, scannerID uint32, attr Attribute) error
	SoundBeeper(ctx context.Context, scannerID uint32, pattern BeepPattern) error
	ToggleLED(ctx context.Context, scannerID uint32, mode LEDMode) error

	// SetOnScan and SetOnPnP register the single event consumer.
	SetOnScan(fn func(Scan))
	SetOnPnP(fn func(PnPEvent))
}
