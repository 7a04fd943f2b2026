package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/autoscan-core/internal/barcode"
	"github.com/nerrad567/autoscan-core/internal/driver"
	"github.com/nerrad567/autoscan-core/internal/feedback"
	"github.com/nerrad567/autoscan-core/internal/history"
	"github.com/nerrad567/autoscan-core/internal/inventory"
	"github.com/nerrad567/autoscan-core/internal/timer"
)

const (
	defaultScanTimeout   = 30 * time.Second
	defaultUpdateTimeout = 30 * time.Second
	defaultEventBuffer   = 64
)

// Logger is the logging interface used by the scanner package.
// Fatal logs at the highest level and does not exit.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

// HistoryRecorder stores pair attempts.
type HistoryRecorder interface {
	Record(ctx context.Context, a *history.Attempt) error
}

// Telemetry receives scan and pair measurements.
type Telemetry interface {
	WriteScan(deviceID uint32, prefix, kind, outcome string)
	WritePairAttempt(deviceID uint32, result string, exitStatus int, duration time.Duration)
}

// Options holds configuration for creating a Service.
type Options struct {
	Driver    driver.Driver
	Inventory inventory.Client

	// History and Telemetry are optional.
	History   HistoryRecorder
	Telemetry Telemetry

	// Table overrides the default notification table.
	Table feedback.Table

	// ScanTimeout is how long a pending scan waits. Default: 30s.
	ScanTimeout time.Duration

	// RetainMultiLocation keeps multi-item locations pending after a pair.
	RetainMultiLocation bool

	// UpdateTimeout bounds one inventory update. Default: 30s.
	UpdateTimeout time.Duration

	// EventBuffer bounds the shared event channel. Default: 64.
	EventBuffer int

	Configurator ConfiguratorOptions

	Logger Logger
}

// Counters are running totals since Start.
type Counters struct {
	Scans        uint64
	Rejected     uint64
	Pairs        uint64
	PairFailures uint64
	Timeouts     uint64
}

// Service runs scan pairing for every attached device.
type Service struct {
	driver    driver.Driver
	inventory inventory.Client
	history   HistoryRecorder
	telemetry Telemetry
	logger    Logger

	timers       *timer.Scheduler
	feedback     *feedback.Dispatcher
	registry     *Registry
	configurator *Configurator

	scanTimeout   time.Duration
	updateTimeout time.Duration
	retainMulti   bool

	events  chan Event
	workers sync.WaitGroup

	scans        atomic.Uint64
	rejected     atomic.Uint64
	pairs        atomic.Uint64
	pairFailures atomic.Uint64
	timeouts     atomic.Uint64

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewService creates a Service. Call Start to begin processing.
func NewService(opts Options) (*Service, error) {
	if opts.Driver == nil {
		return nil, errors.New("driver is required")
	}
	if opts.Inventory == nil {
		return nil, errors.New("inventory client is required")
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	scanTimeout := opts.ScanTimeout
	if scanTimeout <= 0 {
		scanTimeout = defaultScanTimeout
	}
	updateTimeout := opts.UpdateTimeout
	if updateTimeout <= 0 {
		updateTimeout = defaultUpdateTimeout
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	table := opts.Table
	if table == nil {
		table = feedback.DefaultTable()
	}

	timers := timer.New()
	registry := NewRegistry(timers)

	dispatcher := feedback.NewDispatcher(opts.Driver, timers, table)
	dispatcher.SetLogger(logger)

	configurator := NewConfigurator(opts.Driver, registry, opts.Configurator)
	configurator.SetLogger(logger)

	return &Service{
		driver:        opts.Driver,
		inventory:     opts.Inventory,
		history:       opts.History,
		telemetry:     opts.Telemetry,
		logger:        logger,
		timers:        timers,
		feedback:      dispatcher,
		registry:      registry,
		configurator:  configurator,
		scanTimeout:   scanTimeout,
		updateTimeout: updateTimeout,
		retainMulti:   opts.RetainMultiLocation,
		events:        make(chan Event, buffer),
	}, nil
}

// Start registers the driver callbacks, starts the dispatcher and queues
// an initial registry build.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("service already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.driver.SetOnScan(func(scan driver.Scan) {
		s.post(ScanEvent{ScannerID: scan.ScannerID, Data: scan.Data})
	})
	s.driver.SetOnPnP(func(ev driver.PnPEvent) {
		if ev.Kind == driver.PnPDetached {
			s.post(DetachEvent{ScannerID: ev.ScannerID})
			return
		}
		s.post(AttachEvent{ScannerID: ev.ScannerID})
	})

	s.wg.Add(1)
	go s.dispatchLoop(s.ctx)

	s.events <- AttachEvent{}

	s.logger.Info("scanner service started",
		"scan_timeout", s.scanTimeout.String(),
		"retain_multi_location", s.retainMulti,
	)
	return nil
}

// Stop stops the dispatcher, every device worker and every timer. Workers
// discarded by earlier rebuilds are waited for too.
// Safe to call multiple times.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.running = false
		s.cancel()
		s.mu.Unlock()

		s.driver.SetOnScan(nil)
		s.driver.SetOnPnP(nil)

		s.wg.Wait()
		s.registry.Clear()
		s.workers.Wait()
		s.timers.Stop()

		s.logger.Info("scanner service stopped")
	})
}

// Post queues ev on the event channel, waiting for room. It is what the
// driver callbacks use.
func (s *Service) Post(ev Event) error {
	s.mu.Lock()
	ctx, running := s.ctx, s.running
	s.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ErrNotRunning
	}
}

func (s *Service) post(ev Event) {
	if err := s.Post(ev); err != nil {
		s.logger.Debug("event dropped", "error", err)
	}
}

// Registry returns the device registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// DeviceCount returns the number of registered scanners.
func (s *Service) DeviceCount() int {
	return s.registry.Len()
}

// InventoryConnected reports whether the inventory client is connected.
func (s *Service) InventoryConnected() bool {
	return s.inventory.IsConnected()
}

// Counters returns the running totals.
func (s *Service) Counters() Counters {
	return Counters{
		Scans:        s.scans.Load(),
		Rejected:     s.rejected.Load(),
		Pairs:        s.pairs.Load(),
		PairFailures: s.pairFailures.Load(),
		Timeouts:     s.timeouts.Load(),
	}
}

func (s *Service) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case ScanEvent:
		s.route(ev)
	case AttachEvent:
		s.logger.Info("device attached", "scanner_id", ev.ScannerID)
		s.rebuild(ctx)
	case DetachEvent:
		s.logger.Info("device detached", "scanner_id", ev.ScannerID)
		s.rebuild(ctx)
	default:
		s.logger.Warn("unexpected event", "type", fmt.Sprintf("%T", ev))
	}
}

func (s *Service) rebuild(ctx context.Context) {
	devices, err := s.configurator.Rebuild(ctx)
	if err != nil {
		s.logger.Error("rebuilding device registry failed", "error", err)
		return
	}
	for _, d := range devices {
		d.start(ctx, s.handleDeviceEvent, &s.workers)
	}
	s.logger.Info("device registry rebuilt", "devices", len(devices))
}

// route hands a scan to the device its prefix names.
func (s *Service) route(ev ScanEvent) {
	prefix, size := utf8.DecodeRuneInString(ev.Data)
	if size == 0 {
		s.logger.Warn("empty scan dropped", "scanner_id", ev.ScannerID)
		return
	}

	d, ok := s.registry.Lookup(prefix)
	if !ok {
		s.logger.Warn("scan with unknown prefix dropped",
			"scanner_id", ev.ScannerID,
			"prefix", string(prefix),
		)
		return
	}

	if err := d.enqueue(ev); err != nil {
		s.logger.Warn("scan dropped", "scanner_id", d.ID, "prefix", string(prefix), "error", err)
	}
}

// onScanTimeout runs on the timer goroutine and forwards the expiry to
// the device's worker.
func (s *Service) onScanTimeout(h timer.Handle) {
	d, ok := s.registry.Get(h.Key.DeviceID)
	if !ok {
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if err := d.enqueueWait(ctx, TimerExpiry{Handle: h}); err != nil {
		s.logger.Debug("scan timeout dropped", "scanner_id", d.ID, "error", err)
	}
}

func (s *Service) handleDeviceEvent(ctx context.Context, d *Device, ev Event) {
	switch ev := ev.(type) {
	case ScanEvent:
		s.handleScan(ctx, d, ev)
	case TimerExpiry:
		s.handleExpiry(ctx, d, ev.Handle)
	}
}

func (s *Service) handleExpiry(ctx context.Context, d *Device, h timer.Handle) {
	d.mu.Lock()
	if d.scanTimer != h {
		d.mu.Unlock()
		s.logger.Debug("stale scan timeout ignored", "scanner_id", d.ID)
		return
	}
	pending := d.pending
	d.pending = nil
	d.scanTimer = timer.Handle{}
	d.mu.Unlock()

	s.timeouts.Add(1)
	payload := ""
	if pending != nil {
		payload = pending.Payload
	}
	s.logger.Info("pending scan timed out",
		"scanner_id", d.ID,
		"prefix", string(d.Prefix),
		"payload", payload,
	)
	s.feedback.Notify(ctx, d.ID, feedback.TimerUp)
}

func (s *Service) handleScan(ctx context.Context, d *Device, ev ScanEvent) {
	payload := barcode.Normalize(ev.Data[utf8.RuneLen(d.Prefix):])
	kind := barcode.Classify(payload)

	d.mu.Lock()
	step := Transition(d.pending, kind, payload, s.retainMulti)
	d.pending = step.Pending
	switch step.Timer {
	case TimerArm:
		d.scanTimer = s.timers.Arm(
			timer.Key{DeviceID: d.ID, Kind: timer.KindScanTimeout},
			s.scanTimeout,
			s.onScanTimeout,
		)
	case TimerDisarm:
		s.timers.Cancel(d.scanTimer)
		d.scanTimer = timer.Handle{}
	}
	d.mu.Unlock()

	s.scans.Add(1)
	if s.telemetry != nil {
		s.telemetry.WriteScan(d.ID, string(d.Prefix), kind.String(), step.Outcome.String())
	}

	s.logger.Debug("scan",
		"scanner_id", d.ID,
		"prefix", string(d.Prefix),
		"payload", payload,
		"kind", kind.String(),
		"outcome", step.Outcome.String(),
		"timer", step.Timer.String(),
	)

	switch step.Outcome {
	case Rejected:
		s.rejected.Add(1)
		s.logger.Warn("barcode not recognised", "scanner_id", d.ID, "payload", payload)
		s.feedback.Notify(ctx, d.ID, feedback.BarcodeFailure)
	case Stored, Replaced:
		s.feedback.Notify(ctx, d.ID, feedback.GenericScan)
	case Completed, CompletedKeepPending:
		s.persist(ctx, d, step)
	}
}

// persist sends a completed pair to the inventory and plays the result.
// The update timeout covers reconnecting as well as the update itself.
// Device state is not rolled back on failure.
func (s *Service) persist(ctx context.Context, d *Device, step Step) {
	pair := step.Pair
	s.pairs.Add(1)
	s.feedback.Notify(ctx, d.ID, feedback.TryDatabase)

	attempt := &history.Attempt{
		DeviceID: d.ID,
		Prefix:   string(d.Prefix),
		NID:      pair.Identifier,
		Location: pair.Location,
		Outcome:  step.Outcome.String(),
	}
	logArgs := []any{
		"scanner_id", d.ID,
		"nid", pair.Identifier,
		"location", pair.Location,
	}

	start := time.Now()
	updateCtx, cancel := context.WithTimeout(ctx, s.updateTimeout)
	defer cancel()

	if !s.inventory.IsConnected() {
		if err := s.inventory.Connect(updateCtx); err != nil {
			attempt.Duration = time.Since(start)
			s.pairFailures.Add(1)
			s.logger.Fatal("inventory connection failed", append(logArgs, "error", err)...)
			s.feedback.Notify(ctx, d.ID, feedback.DatabaseFailure)

			attempt.Result = history.ResultNoConnect
			attempt.Error = err.Error()
			s.record(ctx, attempt, inventory.StatusUnknown)
			return
		}
		s.logger.Info("inventory connected")
	}

	status, err := s.inventory.Update(updateCtx, pair.Identifier, pair.Location)
	attempt.Duration = time.Since(start)

	var updateErr *inventory.UpdateError
	switch {
	case err == nil:
		attempt.Result = history.ResultOK
		if pair.Location == "" {
			s.logger.Info("identifier location cleared", logArgs...)
		} else {
			s.logger.Info("pair stored", logArgs...)
		}

	case errors.As(err, &updateErr) && updateErr.Status == inventory.StatusReserved:
		s.pairFailures.Add(1)
		attempt.Result = history.ResultRefused
		attempt.Error = err.Error()
		s.logger.Fatal("endpoint reserved, pair refused", append(logArgs, "error", err)...)
		s.feedback.Notify(ctx, d.ID, feedback.DeviceReserved)

	case inventory.IsConnectionError(err):
		s.pairFailures.Add(1)
		attempt.Result = history.ResultNoConnect
		attempt.Error = err.Error()
		s.logger.Fatal("inventory transport failed", append(logArgs, "error", err)...)
		s.feedback.Notify(ctx, d.ID, feedback.DatabaseFailure)

	default:
		s.pairFailures.Add(1)
		attempt.Result = history.ResultFailed
		attempt.Error = err.Error()
		s.logger.Fatal("inventory update failed",
			append(logArgs, "exit_status", int(status), "error", err)...)
		s.feedback.Notify(ctx, d.ID, feedback.DatabaseFailure)
	}

	s.record(ctx, attempt, status)
}

func (s *Service) record(ctx context.Context, a *history.Attempt, status inventory.ExitStatus) {
	if status != inventory.StatusUnknown {
		code := int(status)
		a.ExitStatus = &code
	}

	if s.telemetry != nil {
		s.telemetry.WritePairAttempt(a.DeviceID, a.Result, int(status), a.Duration)
	}
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, a); err != nil {
		s.logger.Error("recording pair attempt failed", "nid", a.NID, "error", err)
	}
}
