package hass

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"blitzmap-server/internal/config"
	"blitzmap-server/internal/modules/lightning/types"
)

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]byte
	retained  map[string]bool
	handlers  map[string]func(topic string, payload []byte)
	connected bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		published: make(map[string][]byte),
		retained:  make(map[string]bool),
		handlers:  make(map[string]func(string, []byte)),
		connected: true,
	}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = payload
	b.retained[topic] = retained
	return nil
}

func (b *fakeBroker) Subscribe(topic string, handler func(string, []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) IsConnected() bool { return b.connected }

// deliver simulates a broker message on a subscribed topic.
func (b *fakeBroker) deliver(t *testing.T, topic string, payload string) {
	t.Helper()
	b.mu.Lock()
	handler, ok := b.handlers[topic]
	b.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", topic)
	}
	handler(topic, []byte(payload))
}

func (b *fakeBroker) payload(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.published[topic]
	return p, ok
}

type fakeCommands struct {
	mu       sync.Mutex
	patches  []types.SettingsPatch
	settings types.Settings
	applyErr error
	refresh  int
}

func (c *fakeCommands) ApplySettings(patch types.SettingsPatch) (types.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applyErr != nil {
		return types.Settings{}, c.applyErr
	}
	c.patches = append(c.patches, patch)
	c.settings = patch.Apply(c.settings)
	return c.settings, nil
}

func (c *fakeCommands) ForceRefresh(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh++
	return nil
}

func testConfig() config.Config {
	return config.Config{
		MQTTDiscoveryPrefix: "homeassistant",
		MQTTBaseTopic:       "blitzmap",
	}
}

func newTestService() (*Service, *fakeBroker, *fakeCommands) {
	broker := newFakeBroker()
	commands := &fakeCommands{}
	svc := NewService(testConfig(), broker, slog.New(slog.DiscardHandler), "1.2.3")
	return svc, broker, commands
}

func TestPublishDiscovery(t *testing.T) {
	svc, broker, _ := newTestService()

	if err := svc.PublishDiscovery(); err != nil {
		t.Fatalf("PublishDiscovery: %v", err)
	}

	wantTopics := []string{
		"homeassistant/camera/blitzmap/map/config",
		"homeassistant/sensor/blitzmap/last_updated/config",
		"homeassistant/sensor/blitzmap/strike_count/config",
		"homeassistant/sensor/blitzmap/nearest_strike_distance/config",
		"homeassistant/number/blitzmap/marker_latitude/config",
		"homeassistant/number/blitzmap/marker_longitude/config",
		"homeassistant/switch/blitzmap/show_marker/config",
		"homeassistant/switch/blitzmap/show_legend/config",
		"homeassistant/switch/blitzmap/show_activity_graph/config",
		"homeassistant/button/blitzmap/force_update/config",
	}
	for _, topic := range wantTopics {
		payload, ok := broker.payload(topic)
		if !ok {
			t.Errorf("missing discovery config on %s", topic)
			continue
		}
		if !broker.retained[topic] {
			t.Errorf("config on %s not retained", topic)
		}
		var cfg map[string]any
		if err := json.Unmarshal(payload, &cfg); err != nil {
			t.Errorf("config on %s is not JSON: %v", topic, err)
		}
	}

	t.Run("camera config points at the image topic", func(t *testing.T) {
		payload, _ := broker.payload("homeassistant/camera/blitzmap/map/config")
		var cfg entityConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if cfg.Topic != "blitzmap/camera" {
			t.Errorf("camera topic = %q; want blitzmap/camera", cfg.Topic)
		}
		if cfg.AvailabilityTopic != "blitzmap/status" {
			t.Errorf("availability topic = %q; want blitzmap/status", cfg.AvailabilityTopic)
		}
		if cfg.Device.Manufacturer != "Blitzortung.org" {
			t.Errorf("manufacturer = %q", cfg.Device.Manufacturer)
		}
	})

	t.Run("latitude number carries its range", func(t *testing.T) {
		payload, _ := broker.payload("homeassistant/number/blitzmap/marker_latitude/config")
		var cfg entityConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if cfg.Min == nil || *cfg.Min != -90 || cfg.Max == nil || *cfg.Max != 90 {
			t.Errorf("latitude range = %v..%v; want -90..90", cfg.Min, cfg.Max)
		}
		if cfg.CommandTopic != "blitzmap/number/marker_latitude/set" {
			t.Errorf("command topic = %q", cfg.CommandTopic)
		}
	})
}

func TestSubscribeCommands_Switch(t *testing.T) {
	svc, broker, commands := newTestService()
	if err := svc.SubscribeCommands(commands); err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}

	broker.deliver(t, "blitzmap/switch/show_legend/set", "ON")

	if len(commands.patches) != 1 {
		t.Fatalf("patches = %d; want 1", len(commands.patches))
	}
	patch := commands.patches[0]
	if patch.ShowLegend == nil || !*patch.ShowLegend {
		t.Errorf("patch = %+v; want ShowLegend=true", patch)
	}

	// The resulting state is echoed back.
	state, ok := broker.payload("blitzmap/switch/show_legend/state")
	if !ok || string(state) != "ON" {
		t.Errorf("echoed state = %q, ok=%v; want ON", state, ok)
	}
}

func TestSubscribeCommands_SwitchIgnoresGarbage(t *testing.T) {
	svc, broker, commands := newTestService()
	if err := svc.SubscribeCommands(commands); err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}

	broker.deliver(t, "blitzmap/switch/show_marker/set", "maybe")

	if len(commands.patches) != 0 {
		t.Errorf("patches = %d; want 0", len(commands.patches))
	}
}

func TestSubscribeCommands_Number(t *testing.T) {
	svc, broker, commands := newTestService()
	if err := svc.SubscribeCommands(commands); err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}

	broker.deliver(t, "blitzmap/number/marker_latitude/set", "51.92")

	if len(commands.patches) != 1 {
		t.Fatalf("patches = %d; want 1", len(commands.patches))
	}
	patch := commands.patches[0]
	if patch.MarkerLatitude == nil || *patch.MarkerLatitude != 51.92 {
		t.Errorf("patch = %+v; want MarkerLatitude=51.92", patch)
	}

	broker.deliver(t, "blitzmap/number/marker_latitude/set", "not-a-number")
	if len(commands.patches) != 1 {
		t.Errorf("garbage payload reached commands")
	}
}

func TestSubscribeCommands_Button(t *testing.T) {
	svc, broker, commands := newTestService()
	if err := svc.SubscribeCommands(commands); err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}

	broker.deliver(t, "blitzmap/button/force_update/set", "PRESS")
	if commands.refresh != 1 {
		t.Errorf("refresh calls = %d; want 1", commands.refresh)
	}

	broker.deliver(t, "blitzmap/button/force_update/set", "NOPE")
	if commands.refresh != 1 {
		t.Errorf("refresh calls = %d after garbage; want 1", commands.refresh)
	}
}

func TestSubscribeCommands_ApplyErrorDoesNotEcho(t *testing.T) {
	svc, broker, commands := newTestService()
	commands.applyErr = errors.New("db down")
	if err := svc.SubscribeCommands(commands); err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}

	broker.deliver(t, "blitzmap/switch/show_legend/set", "ON")

	if _, ok := broker.payload("blitzmap/switch/show_legend/state"); ok {
		t.Error("state echoed despite apply error")
	}
}

func TestPublishUpdate(t *testing.T) {
	svc, broker, _ := newTestService()

	km := 12.34
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc.PublishUpdate(types.Update{LastUpdated: now, StrikeCount: 42, NearestStrikeKm: &km})

	if got, _ := broker.payload("blitzmap/sensor/last_updated/state"); string(got) != "2026-08-24T12:00:00Z" {
		t.Errorf("last_updated = %q", got)
	}
	if got, _ := broker.payload("blitzmap/sensor/strike_count/state"); string(got) != "42" {
		t.Errorf("strike_count = %q", got)
	}
	if got, _ := broker.payload("blitzmap/sensor/nearest_strike_distance/state"); string(got) != "12.3" {
		t.Errorf("nearest = %q", got)
	}
}

func TestPublishUpdate_NoNearest(t *testing.T) {
	svc, broker, _ := newTestService()

	svc.PublishUpdate(types.Update{LastUpdated: time.Now(), StrikeCount: 0})

	if got, _ := broker.payload("blitzmap/sensor/nearest_strike_distance/state"); string(got) != "None" {
		t.Errorf("nearest = %q; want None", got)
	}
}

func TestPublishUpdate_SkipsWhenDisconnected(t *testing.T) {
	svc, broker, _ := newTestService()
	broker.connected = false

	svc.PublishUpdate(types.Update{LastUpdated: time.Now(), StrikeCount: 1})

	if len(broker.published) != 0 {
		t.Errorf("published %d messages while disconnected", len(broker.published))
	}
}

func TestPublishAnimationAndSettings(t *testing.T) {
	svc, broker, _ := newTestService()

	svc.PublishAnimation([]byte("GIF89a"))
	if got, _ := broker.payload("blitzmap/camera"); string(got) != "GIF89a" {
		t.Errorf("camera payload = %q", got)
	}
	if !broker.retained["blitzmap/camera"] {
		t.Error("camera payload not retained")
	}

	svc.PublishSettings(types.Settings{
		MarkerLatitude:  52.1,
		MarkerLongitude: 5.18,
		ShowMarker:      true,
	})
	if got, _ := broker.payload("blitzmap/switch/show_marker/state"); string(got) != "ON" {
		t.Errorf("show_marker = %q", got)
	}
	if got, _ := broker.payload("blitzmap/switch/show_legend/state"); string(got) != "OFF" {
		t.Errorf("show_legend = %q", got)
	}
	if got, _ := broker.payload("blitzmap/number/marker_latitude/state"); string(got) != "52.1" {
		t.Errorf("marker_latitude = %q", got)
	}
}
