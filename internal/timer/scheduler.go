package timer

import (
	"fmt"
	"sync"
	"time"
)

// Kind separates the countdown families kept per device.
type Kind int

const (
	// KindScanTimeout clears a device's pending scan.
	KindScanTimeout Kind = iota

	// KindLEDOff turns a device's LED off after a notification.
	KindLEDOff
)

var kinds = []Kind{KindScanTimeout, KindLEDOff}

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindScanTimeout:
		return "scan_timeout"
	case KindLEDOff:
		return "led_off"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies one timer slot.
type Key struct {
	DeviceID uint32
	Kind     Kind
}

// Handle identifies one arm cycle of a Key.
type Handle struct {
	Key Key
	seq uint64
}

// IsZero reports whether h was never returned by Arm.
func (h Handle) IsZero() bool {
	return h.seq == 0
}

type entry struct {
	timer *time.Timer
	seq   uint64
}

// Scheduler runs keyed single-shot timers.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[Key]*entry
	seq     uint64
	stopped bool
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		timers: make(map[Key]*entry),
	}
}

// Arm starts a timer for key that calls fn after d, replacing any timer
// already armed for key. After Stop, Arm returns a Handle that never fires.
func (s *Scheduler) Arm(key Key, d time.Duration, fn func(Handle)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
		delete(s.timers, key)
	}

	s.seq++
	h := Handle{Key: key, seq: s.seq}
	if s.stopped {
		return h
	}

	e := &entry{seq: h.seq}
	e.timer = time.AfterFunc(d, func() { s.fire(h, fn) })
	s.timers[key] = e

	return h
}

// fire delivers an expiry unless h has been replaced or cancelled.
func (s *Scheduler) fire(h Handle, fn func(Handle)) {
	s.mu.Lock()
	e, ok := s.timers[h.Key]
	if !ok || e.seq != h.seq {
		s.mu.Unlock()
		return
	}
	delete(s.timers, h.Key)
	s.mu.Unlock()

	fn(h)
}

// Cancel disarms h. It returns false if h already fired, was cancelled or
// was replaced by a later Arm.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[h.Key]
	if !ok || e.seq != h.seq {
		return false
	}
	e.timer.Stop()
	delete(s.timers, h.Key)
	return true
}

// CancelDevice disarms every timer for a device.
func (s *Scheduler) CancelDevice(deviceID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range kinds {
		key := Key{DeviceID: deviceID, Kind: k}
		if e, ok := s.timers[key]; ok {
			e.timer.Stop()
			delete(s.timers, key)
		}
	}
}

// Active reports whether h is still armed.
func (s *Scheduler) Active(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[h.Key]
	return ok && e.seq == h.seq
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms all timers. Later calls to Arm never fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
	s.stopped = true
}
