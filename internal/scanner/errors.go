package scanner

import "errors"

var (
	// ErrQueueFull is returned when a device's work queue has no room.
	ErrQueueFull = errors.New("scanner: device queue full")

	// ErrDeviceStopped is returned when enqueuing to a discarded device.
	ErrDeviceStopped = errors.New("scanner: device stopped")

	// ErrNotRunning is returned by Service methods before Start or after Stop.
	ErrNotRunning = errors.New("scanner: service not running")
)
