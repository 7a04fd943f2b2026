package driver

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScanMessage is published by the gateway for every decoded barcode.
type ScanMessage struct {
	// ID is unique per scan and repeats on redelivery.
	ID        string    `json:"id"`
	ScannerID uint32    `json:"scanner_id"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// PnPMessage is published by the gateway on attach and detach.
type PnPMessage struct {
	Event     PnPKind      `json:"event"`
	ScannerID uint32       `json:"scanner_id"`
	Devices   []DeviceInfo `json:"devices"`
	Timestamp time.Time    `json:"timestamp"`
}

// DevicesMessage is the retained device list.
type DevicesMessage struct {
	Devices   []DeviceInfo `json:"devices"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

// CommandAction names a device action.
type CommandAction string

const (
	ActionSetAttribute CommandAction = "set_attribute"
	ActionBeep         CommandAction = "beep"
	ActionLED          CommandAction = "led"
)

// CommandMessage is sent from the core to the gateway.
type CommandMessage struct {
	ID          string        `json:"id"`
	Action      CommandAction `json:"action"`
	Attribute   *Attribute    `json:"attribute,omitempty"`
	BeepPattern *BeepPattern  `json:"beep_pattern,omitempty"`
	LEDMode     *LEDMode      `json:"led_mode,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

func parseScan(payload []byte) (ScanMessage, error) {
	var msg ScanMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.ID == "" {
		return msg, fmt.Errorf("%w: scan without id", ErrInvalidMessage)
	}
	return msg, nil
}

func parsePnP(payload []byte) (PnPMessage, error) {
	var msg PnPMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Event != PnPAttached && msg.Event != PnPDetached {
		return msg, fmt.Errorf("%w: unknown pnp event %q", ErrInvalidMessage, msg.Event)
	}
	return msg, nil
}

func parseDevices(payload []byte) (DevicesMessage, error) {
	var msg DevicesMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return msg, nil
}
