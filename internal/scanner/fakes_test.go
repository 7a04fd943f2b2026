package scanner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/autoscan-core/internal/driver"
	"github.com/nerrad567/autoscan-core/internal/history"
	"github.com/nerrad567/autoscan-core/internal/inventory"
)

// fakeDriver implements driver.Driver in memory.
type fakeDriver struct {
	mu        sync.Mutex
	devices   []driver.DeviceInfo
	listErr   error
	listCalls int
	attrs     map[uint32][]driver.Attribute
	beeps     map[uint32][]driver.BeepPattern
	leds      map[uint32][]driver.LEDMode
	onScan    func(driver.Scan)
	onPnP     func(driver.PnPEvent)
}

func newFakeDriver(devices ...driver.DeviceInfo) *fakeDriver {
	return &fakeDriver{
		devices: devices,
		attrs:   make(map[uint32][]driver.Attribute),
		beeps:   make(map[uint32][]driver.BeepPattern),
		leds:    make(map[uint32][]driver.LEDMode),
	}
}

func (f *fakeDriver) Devices(_ context.Context) ([]driver.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]driver.DeviceInfo(nil), f.devices...), nil
}

func (f *fakeDriver) SetAttribute(_ context.Context, id uint32, attr driver.Attribute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[id] = append(f.attrs[id], attr)
	return nil
}

func (f *fakeDriver) SoundBeeper(_ context.Context, id uint32, p driver.BeepPattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beeps[id] = append(f.beeps[id], p)
	return nil
}

func (f *fakeDriver) ToggleLED(_ context.Context, id uint32, m driver.LEDMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leds[id] = append(f.leds[id], m)
	return nil
}

func (f *fakeDriver) SetOnScan(fn func(driver.Scan)) {
	f.mu.Lock()
	f.onScan = fn
	f.mu.Unlock()
}

func (f *fakeDriver) SetOnPnP(fn func(driver.PnPEvent)) {
	f.mu.Lock()
	f.onPnP = fn
	f.mu.Unlock()
}

func (f *fakeDriver) scan(id uint32, data string) {
	f.mu.Lock()
	fn := f.onScan
	f.mu.Unlock()
	if fn != nil {
		fn(driver.Scan{ScannerID: id, Data: data, Timestamp: time.Now()})
	}
}

func (f *fakeDriver) pnp(kind driver.PnPKind, id uint32, devices ...driver.DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	fn := f.onPnP
	f.mu.Unlock()
	if fn != nil {
		fn(driver.PnPEvent{Kind: kind, ScannerID: id, Devices: devices})
	}
}

func (f *fakeDriver) beepsFor(id uint32) []driver.BeepPattern {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driver.BeepPattern(nil), f.beeps[id]...)
}

func (f *fakeDriver) ledsFor(id uint32) []driver.LEDMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driver.LEDMode(nil), f.leds[id]...)
}

func (f *fakeDriver) attrsFor(id uint32) []driver.Attribute {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driver.Attribute(nil), f.attrs[id]...)
}

func (f *fakeDriver) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// fakeInventory implements inventory.Client in memory.
type fakeInventory struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	connectHang chan struct{}
	connects    int
	status      inventory.ExitStatus
	updateErr   error
	calls       []Pair
	block       map[string]chan struct{}
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{block: make(map[string]chan struct{})}
}

func (f *fakeInventory) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	hang := f.connectHang
	f.mu.Unlock()

	if hang != nil {
		select {
		case <-hang:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", inventory.ErrConnect, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeInventory) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeInventory) Update(ctx context.Context, nid, location string) (inventory.ExitStatus, error) {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return inventory.StatusUnknown, inventory.ErrNotConnected
	}
	f.calls = append(f.calls, Pair{Identifier: nid, Location: location})
	block := f.block[nid]
	status, err := f.status, f.updateErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return inventory.StatusUnknown, fmt.Errorf("%w: %w", inventory.ErrTransport, ctx.Err())
		}
	}
	return status, err
}

func (f *fakeInventory) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeInventory) updates() []Pair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Pair(nil), f.calls...)
}

// fakeHistory records attempts in memory.
type fakeHistory struct {
	mu       sync.Mutex
	attempts []history.Attempt
}

func (f *fakeHistory) Record(_ context.Context, a *history.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeHistory) all() []history.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Attempt(nil), f.attempts...)
}

// recordingLogger keeps messages logged at Fatal.
type recordingLogger struct {
	noopLogger
	mu     sync.Mutex
	fatals []string
}

func (l *recordingLogger) Fatal(msg string, _ ...any) {
	l.mu.Lock()
	l.fatals = append(l.fatals, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) fatalCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fatals)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func contains[T comparable](items []T, want T) bool {
	for _, v := range items {
		if v == want {
			return true
		}
	}
	return false
}

func count[T comparable](items []T, want T) int {
	n := 0
	for _, v := range items {
		if v == want {
			n++
		}
	}
	return n
}
