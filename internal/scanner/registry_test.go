package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/autoscan-core/internal/timer"
)

func TestRegistry_LookupAndGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Replace([]*Device{
		newDevice(7, 'B', "DS2278", 1),
		newDevice(9, 'A', "DS2278", 1),
	})

	if d, ok := r.Lookup('A'); !ok || d.ID != 9 {
		t.Errorf("Lookup('A') = %v, %v", d, ok)
	}
	if d, ok := r.Get(7); !ok || d.Prefix != 'B' {
		t.Errorf("Get(7) = %v, %v", d, ok)
	}
	if _, ok := r.Lookup('C'); ok {
		t.Error("Lookup('C') found a device")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	devices := r.Devices()
	if len(devices) != 2 || devices[0].Prefix != 'A' || devices[1].Prefix != 'B' {
		t.Errorf("Devices() not ordered by prefix: %v", devices)
	}
}

func TestRegistry_ReplaceStopsWorkersAndCancelsScanTimers(t *testing.T) {
	timers := timer.New()
	defer timers.Stop()
	r := NewRegistry(timers)

	started := newDevice(7, 'A', "DS2278", 4)
	idle := newDevice(9, 'B', "DS2278", 4)
	r.Replace([]*Device{started, idle})

	noop := func(timer.Handle) {}
	scan := timers.Arm(timer.Key{DeviceID: 7, Kind: timer.KindScanTimeout}, time.Minute, noop)
	led := timers.Arm(timer.Key{DeviceID: 7, Kind: timer.KindLEDOff}, time.Minute, noop)
	started.scanTimer = scan

	handled := make(chan Event, 4)
	started.start(context.Background(), func(_ context.Context, _ *Device, ev Event) {
		handled <- ev
	}, nil)

	if err := started.enqueue(ScanEvent{Data: "A0123456789"}); err != nil {
		t.Fatalf("enqueue() error = %v", err)
	}
	<-handled

	discarded := r.Clear()

	if len(discarded) != 2 {
		t.Errorf("Clear() returned %d devices, want 2", len(discarded))
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", r.Len())
	}
	if timers.Active(scan) {
		t.Error("scan timeout still armed after Clear")
	}
	if !timers.Active(led) {
		t.Error("LED-off timer cancelled by Clear")
	}
	select {
	case <-started.done:
	case <-time.After(time.Second):
		t.Error("worker still running after Clear")
	}
	if err := started.enqueue(ScanEvent{}); !errors.Is(err, ErrDeviceStopped) {
		t.Errorf("enqueue() after stop error = %v, want ErrDeviceStopped", err)
	}
	if err := idle.enqueueWait(context.Background(), ScanEvent{}); err != nil && !errors.Is(err, ErrDeviceStopped) {
		t.Errorf("enqueueWait() on stopped device error = %v", err)
	}
}

func TestDevice_QueueFull(t *testing.T) {
	d := newDevice(7, 'A', "DS2278", 1)

	if err := d.enqueue(ScanEvent{}); err != nil {
		t.Fatalf("first enqueue() error = %v", err)
	}
	if err := d.enqueue(ScanEvent{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second enqueue() error = %v, want ErrQueueFull", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.enqueueWait(ctx, ScanEvent{}); !errors.Is(err, context.Canceled) {
		t.Errorf("enqueueWait() error = %v, want context.Canceled", err)
	}
}

func TestDevice_StartIsIdempotent(t *testing.T) {
	d := newDevice(7, 'A', "DS2278", 1)
	handle := func(context.Context, *Device, Event) {}

	var workers sync.WaitGroup
	d.start(context.Background(), handle, &workers)
	d.start(context.Background(), handle, &workers)
	d.shutdown()
	d.shutdown()

	select {
	case <-d.done:
	default:
		t.Error("worker still running after shutdown")
	}
	workers.Wait()
}

func TestRegistry_ReplaceDoesNotWaitForBusyWorker(t *testing.T) {
	r := NewRegistry(nil)
	busy := newDevice(7, 'A', "DS2278", 4)
	r.Replace([]*Device{busy})

	inHand := make(chan struct{})
	release := make(chan struct{})
	var workers sync.WaitGroup
	busy.start(context.Background(), func(context.Context, *Device, Event) {
		close(inHand)
		<-release
	}, &workers)

	if err := busy.enqueue(ScanEvent{Data: "A0123456789"}); err != nil {
		t.Fatalf("enqueue() error = %v", err)
	}
	<-inHand

	replaced := make(chan []*Device, 1)
	go func() {
		replaced <- r.Replace([]*Device{newDevice(7, 'A', "DS2278", 4)})
	}()

	select {
	case discarded := <-replaced:
		if len(discarded) != 1 || discarded[0] != busy {
			t.Errorf("Replace() returned %v, want the busy device", discarded)
		}
	case <-time.After(time.Second):
		t.Fatal("Replace() blocked on a busy worker")
	}

	if d, ok := r.Lookup('A'); !ok || d == busy {
		t.Error("Lookup('A') still returns the discarded device")
	}

	close(release)
	workers.Wait()
}
