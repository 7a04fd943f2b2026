package driver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	connected bool
	handlers  map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

func newTestGateway(t *testing.T) (*Gateway, *MockMQTTClient) {
	t.Helper()
	mock := NewMockMQTTClient()
	g, err := NewGateway(GatewayOptions{GatewayID: "gw1", MQTTClient: mock})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return g, mock
}

func TestNewGateway_Validation(t *testing.T) {
	if _, err := NewGateway(GatewayOptions{MQTTClient: NewMockMQTTClient()}); err == nil {
		t.Error("expected error without gateway id")
	}
	if _, err := NewGateway(GatewayOptions{GatewayID: "gw1"}); err == nil {
		t.Error("expected error without MQTT client")
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{GatewayID: "gw1"}

	tests := map[string]string{
		topics.Scan():      "autoscan/gateway/gw1/scan",
		topics.PnP():       "autoscan/gateway/gw1/pnp",
		topics.Devices():   "autoscan/gateway/gw1/devices",
		topics.Command(42): "autoscan/gateway/gw1/command/42",
		topics.Health():    "autoscan/gateway/gw1/health",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("topic = %q, want %q", got, want)
		}
	}
}

func TestGateway_ScanDeduplicated(t *testing.T) {
	g, mock := newTestGateway(t)

	var got []Scan
	g.SetOnScan(func(s Scan) { got = append(got, s) })

	payload := []byte(`{"id":"abc","scanner_id":3,"data":"APN0102","timestamp":"2026-01-02T03:04:05Z"}`)
	mock.SimulateMessage(g.Topics().Scan(), payload)
	mock.SimulateMessage(g.Topics().Scan(), payload)
	mock.SimulateMessage(g.Topics().Scan(), []byte(`{"id":"def","scanner_id":3,"data":"A0123456789"}`))

	if len(got) != 2 {
		t.Fatalf("delivered %d scans, want 2", len(got))
	}
	if got[0].Data != "APN0102" || got[0].ScannerID != 3 {
		t.Errorf("first scan = %+v", got[0])
	}
	if got[1].Timestamp.IsZero() {
		t.Error("missing timestamp should default to now")
	}
}

func TestGateway_InvalidScanDropped(t *testing.T) {
	g, mock := newTestGateway(t)

	called := false
	g.SetOnScan(func(Scan) { called = true })

	mock.SimulateMessage(g.Topics().Scan(), []byte(`not json`))
	mock.SimulateMessage(g.Topics().Scan(), []byte(`{"scanner_id":1,"data":"x"}`))

	if called {
		t.Error("invalid scan reached the consumer")
	}
}

func TestGateway_DevicesWaitsForList(t *testing.T) {
	g, mock := newTestGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Devices(ctx); !errors.Is(err, ErrNoDeviceList) {
		t.Fatalf("Devices() error = %v, want ErrNoDeviceList", err)
	}

	mock.SimulateMessage(g.Topics().Devices(), []byte(`{"devices":[
		{"scanner_id":1,"model_number":"CR0078-SC10007WR"},
		{"scanner_id":2,"model_number":"DS6878-SR20007WR"}]}`))

	devices, err := g.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 2 || devices[1].ID != 2 || devices[1].Model != "DS6878-SR20007WR" {
		t.Errorf("Devices() = %+v", devices)
	}
}

func TestGateway_PnPUpdatesListAndNotifies(t *testing.T) {
	g, mock := newTestGateway(t)

	var events []PnPEvent
	g.SetOnPnP(func(e PnPEvent) { events = append(events, e) })

	mock.SimulateMessage(g.Topics().PnP(), []byte(`{"event":"attached","scanner_id":5,
		"devices":[{"scanner_id":5,"model_number":"DS6878-SR20007WR"}]}`))
	mock.SimulateMessage(g.Topics().PnP(), []byte(`{"event":"exploded","scanner_id":5}`))

	if len(events) != 1 || events[0].Kind != PnPAttached || events[0].ScannerID != 5 {
		t.Fatalf("events = %+v", events)
	}

	devices, err := g.Devices(context.Background())
	if err != nil || len(devices) != 1 {
		t.Errorf("Devices() = %+v, %v", devices, err)
	}
}

func TestGateway_Commands(t *testing.T) {
	g, mock := newTestGateway(t)
	ctx := context.Background()

	if err := g.SoundBeeper(ctx, 9, BeepTwoLowLong); err != nil {
		t.Fatalf("SoundBeeper() error = %v", err)
	}
	if err := g.ToggleLED(ctx, 9, LEDRedOn); err != nil {
		t.Fatalf("ToggleLED() error = %v", err)
	}
	if err := g.SetAttribute(ctx, 9, Attribute{ID: 99, Type: "W", Value: "65"}); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}

	pubs := mock.GetPublished()
	if len(pubs) != 3 {
		t.Fatalf("published %d messages, want 3", len(pubs))
	}

	var beep CommandMessage
	if err := json.Unmarshal(pubs[0].Payload, &beep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pubs[0].Topic != "autoscan/gateway/gw1/command/9" {
		t.Errorf("topic = %q", pubs[0].Topic)
	}
	if beep.Action != ActionBeep || beep.BeepPattern == nil || *beep.BeepPattern != BeepTwoLowLong {
		t.Errorf("beep command = %+v", beep)
	}
	if beep.ID == "" || beep.LEDMode != nil {
		t.Errorf("beep command = %+v", beep)
	}

	var led CommandMessage
	if err := json.Unmarshal(pubs[1].Payload, &led); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if led.LEDMode == nil || *led.LEDMode != 47 {
		t.Errorf("led command = %+v", led)
	}

	var attr CommandMessage
	if err := json.Unmarshal(pubs[2].Payload, &attr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if attr.Attribute == nil || attr.Attribute.ID != 99 || attr.Attribute.Value != "65" {
		t.Errorf("attribute command = %+v", attr)
	}
}

func TestGateway_CommandWhileDisconnected(t *testing.T) {
	g, mock := newTestGateway(t)
	mock.mu.Lock()
	mock.connected = false
	mock.mu.Unlock()

	if err := g.ToggleLED(context.Background(), 1, LEDGreenOn); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ToggleLED() error = %v, want ErrNotConnected", err)
	}
}

func TestBeepPatternCodes(t *testing.T) {
	tests := []struct {
		pattern BeepPattern
		code    int
	}{
		{BeepOneHighShort, 0},
		{BeepThreeHighShort, 2},
		{BeepOneHighLong, 10},
		{BeepOneLowLong, 15},
		{BeepTwoLowLong, 16},
		{BeepFastWarble, 20},
		{BeepHighLow, 22},
		{BeepLowHighLow, 25},
	}
	for _, tt := range tests {
		if int(tt.pattern) != tt.code {
			t.Errorf("pattern code = %d, want %d", tt.pattern, tt.code)
		}
	}
}
