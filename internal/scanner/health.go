package scanner

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// HealthStatus is the operational status of the service.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

const defaultHealthInterval = 30 * time.Second

// HealthMessage is published, retained, on the health topic.
type HealthMessage struct {
	SiteID             string       `json:"site_id"`
	GatewayID          string       `json:"gateway_id"`
	Version            string       `json:"version,omitempty"`
	Status             HealthStatus `json:"status"`
	Reason             string       `json:"reason,omitempty"`
	Devices            int          `json:"devices"`
	InventoryConnected bool         `json:"inventory_connected"`
	Scans              uint64       `json:"scans_total"`
	Pairs              uint64       `json:"pairs_total"`
	PairFailures       uint64       `json:"pair_failures_total"`
	UptimeSeconds      int64        `json:"uptime_seconds"`
	Timestamp          time.Time    `json:"timestamp"`
}

// HealthPublisher publishes health messages, typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource reports the state being published. *Service implements it.
type HealthSource interface {
	DeviceCount() int
	InventoryConnected() bool
	Counters() Counters
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	SiteID    string
	GatewayID string
	Version   string

	// Topic is where health is published, usually Topics.Health().
	Topic string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    HealthSource
}

// HealthReporter publishes service health at a fixed interval.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a reporter. Call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for publish failures.
func (h *HealthReporter) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Start begins periodic reporting until ctx is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publish(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "service starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

// LWTPayload returns the last-will message for the MQTT connection.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(HealthMessage{
		SiteID:    h.cfg.SiteID,
		GatewayID: h.cfg.GatewayID,
		Status:    HealthOffline,
		Reason:    "connection lost",
		Timestamp: time.Now().UTC(),
	})
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Source == nil {
		return HealthHealthy, ""
	}
	if h.cfg.Source.DeviceCount() == 0 {
		return HealthDegraded, "no scanners attached"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}

	msg := HealthMessage{
		SiteID:        h.cfg.SiteID,
		GatewayID:     h.cfg.GatewayID,
		Version:       h.cfg.Version,
		Status:        status,
		Reason:        reason,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC(),
	}
	if src := h.cfg.Source; src != nil {
		c := src.Counters()
		msg.Devices = src.DeviceCount()
		msg.InventoryConnected = src.InventoryConnected()
		msg.Scans = c.Scans
		msg.Pairs = c.Pairs
		msg.PairFailures = c.PairFailures
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()
	logger.Error(msg, "error", err)
}
