package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/autoscan-core/internal/driver"
	"github.com/nerrad567/autoscan-core/internal/timer"
)

// ledOffTimeout bounds the off-command sent from the timer goroutine.
const ledOffTimeout = 5 * time.Second

// Device is the part of the driver the dispatcher drives.
type Device interface {
	SoundBeeper(ctx context.Context, scannerID uint32, pattern driver.BeepPattern) error
	ToggleLED(ctx context.Context, scannerID uint32, mode driver.LEDMode) error
}

// Scheduler arms keyed timers.
type Scheduler interface {
	Arm(key timer.Key, d time.Duration, fn func(timer.Handle)) timer.Handle
}

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// litLED is the off command owed to a device whose LED is on.
type litLED struct {
	off driver.LEDMode
	seq uint64
}

// Dispatcher sends notifications to devices.
//
// A device has at most one LED-off timer. A newer LED notification turns
// the previous LED off straight away before lighting its own.
type Dispatcher struct {
	device Device
	timers Scheduler
	table  Table
	logger Logger

	mu  sync.Mutex
	seq uint64
	lit map[uint32]litLED
}

// NewDispatcher creates a Dispatcher with its own copy of table.
func NewDispatcher(device Device, timers Scheduler, table Table) *Dispatcher {
	return &Dispatcher{
		device: device,
		timers: timers,
		table:  table.clone(),
		logger: noopLogger{},
		lit:    make(map[uint32]litLED),
	}
}

// SetLogger sets the logger for device I/O failures.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Notify plays name on a device. Device errors are logged, not returned.
// An unknown name is a programming error and panics.
func (d *Dispatcher) Notify(ctx context.Context, deviceID uint32, name Notification) {
	spec, ok := d.table[name]
	if !ok {
		panic(fmt.Sprintf("feedback: unknown notification %q", name))
	}

	d.logger.Debug("notify", "device_id", deviceID, "notification", string(name))

	if spec.Beep != nil {
		if err := d.device.SoundBeeper(ctx, deviceID, *spec.Beep); err != nil {
			d.logger.Warn("beep failed", "device_id", deviceID, "notification", string(name), "error", err)
		}
	}

	if spec.LEDOn == nil || spec.LEDOff == nil {
		return
	}

	off := *spec.LEDOff

	d.mu.Lock()
	prev, wasLit := d.lit[deviceID]
	d.seq++
	seq := d.seq
	d.lit[deviceID] = litLED{off: off, seq: seq}
	d.mu.Unlock()

	if wasLit && prev.off != off {
		if err := d.device.ToggleLED(ctx, deviceID, prev.off); err != nil {
			d.logger.Warn("led off failed", "device_id", deviceID, "error", err)
		}
	}

	if err := d.device.ToggleLED(ctx, deviceID, *spec.LEDOn); err != nil {
		d.logger.Warn("led on failed", "device_id", deviceID, "notification", string(name), "error", err)
	}

	key := timer.Key{DeviceID: deviceID, Kind: timer.KindLEDOff}
	d.timers.Arm(key, spec.Hold, func(timer.Handle) {
		if !d.release(deviceID, seq) {
			return
		}
		offCtx, cancel := context.WithTimeout(context.Background(), ledOffTimeout)
		defer cancel()
		if err := d.device.ToggleLED(offCtx, deviceID, off); err != nil {
			d.logger.Warn("led off failed", "device_id", deviceID, "error", err)
		}
	})
}

// release drops the owed off command if it still belongs to seq.
func (d *Dispatcher) release(deviceID uint32, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.lit[deviceID]
	if !ok || cur.seq != seq {
		return false
	}
	delete(d.lit, deviceID)
	return true
}
