package driver

import "errors"

var (
	// ErrNotConnected is returned when the MQTT connection is down.
	ErrNotConnected = errors.New("driver: gateway not connected")

	// ErrNoDeviceList is returned by Devices when the gateway has not yet
	// published its device list.
	ErrNoDeviceList = errors.New("driver: no device list from gateway")

	// ErrInvalidMessage is returned for gateway payloads that cannot be decoded.
	ErrInvalidMessage = errors.New("driver: invalid gateway message")
)
