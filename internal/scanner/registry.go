package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/autoscan-core/internal/timer"
)

// Event is an item on the service's event channel or a device queue.
type Event interface {
	isEvent()
}

// ScanEvent carries one scan from the driver. Data still has the routing
// prefix on it.
type ScanEvent struct {
	ScannerID uint32
	Data      string
}

// AttachEvent and DetachEvent trigger a registry rebuild.
type AttachEvent struct{ ScannerID uint32 }

type DetachEvent struct{ ScannerID uint32 }

// TimerExpiry is a fired scan-timeout, delivered to the device's queue.
type TimerExpiry struct{ Handle timer.Handle }

func (ScanEvent) isEvent()   {}
func (AttachEvent) isEvent() {}
func (DetachEvent) isEvent() {}
func (TimerExpiry) isEvent() {}

// Device is one attached scanner and its pairing state.
type Device struct {
	ID     uint32
	Prefix rune
	Model  string

	mu        sync.Mutex
	pending   *Scan
	scanTimer timer.Handle

	queue   chan Event
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool
	once    sync.Once
}

func newDevice(id uint32, prefix rune, model string, queueSize int) *Device {
	return &Device{
		ID:     id,
		Prefix: prefix,
		Model:  model,
		queue:  make(chan Event, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Pending returns a copy of the pending scan, or nil.
func (d *Device) Pending() *Scan {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	s := *d.pending
	return &s
}

// start runs the device worker. handle is called for every queued event,
// one at a time. workers, if not nil, tracks the worker goroutine.
func (d *Device) start(ctx context.Context, handle func(context.Context, *Device, Event), workers *sync.WaitGroup) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	if workers != nil {
		workers.Add(1)
	}
	go func() {
		defer close(d.done)
		if workers != nil {
			defer workers.Done()
		}
		for {
			select {
			case <-d.stop:
				return
			default:
			}

			select {
			case <-d.stop:
				return
			case <-ctx.Done():
				return
			case ev := <-d.queue:
				handle(ctx, d, ev)
			}
		}
	}()
}

// halt tells the worker to stop once the event in hand is finished.
// Queued events are dropped.
func (d *Device) halt() {
	d.once.Do(func() { close(d.stop) })
}

// shutdown halts the worker and waits for it to exit.
func (d *Device) shutdown() {
	d.halt()
	if d.started.Load() {
		<-d.done
	}
}

// enqueue adds ev without blocking.
func (d *Device) enqueue(ev Event) error {
	select {
	case <-d.stop:
		return ErrDeviceStopped
	default:
	}

	select {
	case d.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// enqueueWait adds ev, waiting for room.
func (d *Device) enqueueWait(ctx context.Context, ev Event) error {
	select {
	case d.queue <- ev:
		return nil
	case <-d.stop:
		return ErrDeviceStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TimerCanceller disarms a timer.
type TimerCanceller interface {
	Cancel(h timer.Handle) bool
}

// Registry maps routing prefixes to devices.
type Registry struct {
	mu       sync.RWMutex
	byPrefix map[rune]*Device
	byID     map[uint32]*Device
	timers   TimerCanceller
}

// NewRegistry creates an empty registry. timers is used to disarm the
// scan timeout of a discarded device.
func NewRegistry(timers TimerCanceller) *Registry {
	return &Registry{
		byPrefix: make(map[rune]*Device),
		byID:     make(map[uint32]*Device),
		timers:   timers,
	}
}

// Lookup returns the device with prefix.
func (r *Registry) Lookup(prefix rune) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byPrefix[prefix]
	return d, ok
}

// Get returns the device with a driver ID.
func (r *Registry) Get(id uint32) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPrefix)
}

// Devices returns the registered devices ordered by prefix.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.byPrefix))
	for _, d := range r.byPrefix {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// Replace discards every registered device and installs devices. It
// returns the discarded devices.
//
// Discarded workers are halted and their scan timeouts cancelled; LED-off
// timers keep running. Replace does not wait for the workers: an event
// already in hand, such as an inventory update, finishes after the new
// devices are in place.
func (r *Registry) Replace(devices []*Device) []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	discarded := make([]*Device, 0, len(r.byPrefix))
	for _, d := range r.byPrefix {
		d.halt()
		d.mu.Lock()
		h := d.scanTimer
		d.scanTimer = timer.Handle{}
		d.mu.Unlock()
		if r.timers != nil && !h.IsZero() {
			r.timers.Cancel(h)
		}
		discarded = append(discarded, d)
	}

	r.byPrefix = make(map[rune]*Device, len(devices))
	r.byID = make(map[uint32]*Device, len(devices))
	for _, d := range devices {
		r.byPrefix[d.Prefix] = d
		r.byID[d.ID] = d
	}
	return discarded
}

// Clear discards every registered device and returns them.
func (r *Registry) Clear() []*Device {
	return r.Replace(nil)
}
