package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	// defaultDedupeWindow is how long a scan ID is remembered.
	defaultDedupeWindow = 2 * time.Minute

	commandQoS = 1
)

// MQTTClient is the subset of the MQTT client the gateway needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// Logger is the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// GatewayOptions holds configuration for creating a Gateway.
type GatewayOptions struct {
	// GatewayID selects the gateway's topic namespace.
	GatewayID string

	// MQTTClient carries all gateway traffic.
	MQTTClient MQTTClient

	// DedupeWindow is how long scan IDs are remembered. Default: 2 minutes.
	DedupeWindow time.Duration

	// Logger is optional.
	Logger Logger
}

// Gateway implements Driver over the scanner gateway's MQTT topics.
type Gateway struct {
	topics Topics
	mqtt   MQTTClient
	logger Logger

	// seen holds recently delivered scan IDs.
	seen *cache.Cache

	devices   []DeviceInfo
	haveList  bool
	listReady chan struct{}
	devMu     sync.RWMutex

	onScan func(Scan)
	onPnP  func(PnPEvent)
	cbMu   sync.RWMutex
}

// NewGateway creates a Gateway. Call Start to subscribe.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if opts.GatewayID == "" {
		return nil, fmt.Errorf("gateway id is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	window := opts.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Gateway{
		topics:    Topics{GatewayID: opts.GatewayID},
		mqtt:      opts.MQTTClient,
		logger:    logger,
		seen:      cache.New(window, 2*window),
		listReady: make(chan struct{}),
	}, nil
}

// Topics returns the topic builder for this gateway.
func (g *Gateway) Topics() Topics {
	return g.topics
}

// Start subscribes to the gateway's outbound topics.
func (g *Gateway) Start() error {
	subs := []struct {
		topic   string
		handler func(string, []byte)
	}{
		{g.topics.Devices(), g.handleDevices},
		{g.topics.PnP(), g.handlePnP},
		{g.topics.Scan(), g.handleScan},
	}

	for _, s := range subs {
		if err := g.mqtt.Subscribe(s.topic, commandQoS, s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		g.logger.Debug("subscribed to gateway topic", "topic", s.topic)
	}
	return nil
}

// SetOnScan registers the scan consumer.
func (g *Gateway) SetOnScan(fn func(Scan)) {
	g.cbMu.Lock()
	g.onScan = fn
	g.cbMu.Unlock()
}

// SetOnPnP registers the attach/detach consumer.
func (g *Gateway) SetOnPnP(fn func(PnPEvent)) {
	g.cbMu.Lock()
	g.onPnP = fn
	g.cbMu.Unlock()
}

// Devices returns the latest device list, waiting for the first one if the
// gateway has not published yet.
func (g *Gateway) Devices(ctx context.Context) ([]DeviceInfo, error) {
	select {
	case <-g.listReady:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoDeviceList, ctx.Err())
	}

	g.devMu.RLock()
	defer g.devMu.RUnlock()

	out := make([]DeviceInfo, len(g.devices))
	copy(out, g.devices)
	return out, nil
}

// SetAttribute writes one device attribute.
func (g *Gateway) SetAttribute(ctx context.Context, scannerID uint32, attr Attribute) error {
	return g.send(ctx, scannerID, CommandMessage{Action: ActionSetAttribute, Attribute: &attr})
}

// SoundBeeper plays a beep pattern.
func (g *Gateway) SoundBeeper(ctx context.Context, scannerID uint32, pattern BeepPattern) error {
	return g.send(ctx, scannerID, CommandMessage{Action: ActionBeep, BeepPattern: &pattern})
}

// ToggleLED sets the LED.
func (g *Gateway) ToggleLED(ctx context.Context, scannerID uint32, mode LEDMode) error {
	return g.send(ctx, scannerID, CommandMessage{Action: ActionLED, LEDMode: &mode})
}

func (g *Gateway) send(ctx context.Context, scannerID uint32, msg CommandMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.mqtt.IsConnected() {
		return ErrNotConnected
	}

	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", msg.Action, err)
	}

	if err := g.mqtt.Publish(g.topics.Command(scannerID), payload, commandQoS, false); err != nil {
		return fmt.Errorf("publish %s command: %w", msg.Action, err)
	}
	return nil
}

func (g *Gateway) handleScan(_ string, payload []byte) {
	msg, err := parseScan(payload)
	if err != nil {
		g.logger.Warn("dropping scan message", "error", err)
		return
	}

	// Add fails when the key is already present.
	if err := g.seen.Add(msg.ID, struct{}{}, cache.DefaultExpiration); err != nil {
		g.logger.Debug("dropping redelivered scan", "id", msg.ID, "scanner_id", msg.ScannerID)
		return
	}

	g.cbMu.RLock()
	fn := g.onScan
	g.cbMu.RUnlock()
	if fn == nil {
		return
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	fn(Scan{ScannerID: msg.ScannerID, Data: msg.Data, Timestamp: ts})
}

func (g *Gateway) handlePnP(_ string, payload []byte) {
	msg, err := parsePnP(payload)
	if err != nil {
		g.logger.Warn("dropping pnp message", "error", err)
		return
	}

	g.storeDevices(msg.Devices)
	g.logger.Info("scanner "+string(msg.Event), "scanner_id", msg.ScannerID, "devices", len(msg.Devices))

	g.cbMu.RLock()
	fn := g.onPnP
	g.cbMu.RUnlock()
	if fn != nil {
		fn(PnPEvent{Kind: msg.Event, ScannerID: msg.ScannerID, Devices: msg.Devices})
	}
}

func (g *Gateway) handleDevices(_ string, payload []byte) {
	msg, err := parseDevices(payload)
	if err != nil {
		g.logger.Warn("dropping device list", "error", err)
		return
	}
	g.storeDevices(msg.Devices)
}

func (g *Gateway) storeDevices(devices []DeviceInfo) {
	g.devMu.Lock()
	defer g.devMu.Unlock()

	g.devices = append([]DeviceInfo(nil), devices...)
	if !g.haveList {
		g.haveList = true
		close(g.listReady)
	}
}
