package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"blitzmap-server/internal/config"
	"blitzmap-server/internal/modules/lightning/types"
)

const commandTimeout = 30 * time.Second

// Broker is the slice of the MQTT client this package needs.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// Commands is what incoming entity commands are translated into; the
// lightning service implements it.
type Commands interface {
	ApplySettings(patch types.SettingsPatch) (types.Settings, error)
	ForceRefresh(ctx context.Context) error
}

// Service publishes discovery configs and entity state, and routes entity
// commands back into the map service.
type Service struct {
	broker            Broker
	commands          Commands
	logger            *slog.Logger
	discoveryPrefix   string
	baseTopic         string
	availabilityTopic string
	version           string
}

func NewService(cfg config.Config, broker Broker, logger *slog.Logger, version string) *Service {
	return &Service{
		broker:            broker,
		logger:            logger,
		discoveryPrefix:   cfg.MQTTDiscoveryPrefix,
		baseTopic:         cfg.MQTTBaseTopic,
		availabilityTopic: cfg.MQTTBaseTopic + "/status",
		version:           version,
	}
}

func (s *Service) cameraTopic() string {
	return s.baseTopic + "/camera"
}

func (s *Service) stateTopic(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/state", s.baseTopic, component, objectID)
}

func (s *Service) commandTopic(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/set", s.baseTopic, component, objectID)
}

// PublishDiscovery announces all entities with retained configs so Home
// Assistant re-creates them after its own restarts.
func (s *Service) PublishDiscovery() error {
	for _, e := range s.entities() {
		payload, err := json.Marshal(e.config)
		if err != nil {
			return fmt.Errorf("marshal %s/%s config: %w", e.component, e.objectID, err)
		}
		topic := discoveryTopic(s.discoveryPrefix, e.component, e.objectID)
		if err := s.broker.Publish(topic, 1, true, payload); err != nil {
			return fmt.Errorf("publish discovery: %w", err)
		}
	}
	s.logger.Info("published discovery configs", "prefix", s.discoveryPrefix)
	return nil
}

// SubscribeCommands wires the switch, number, and button command topics to
// the map service. Called once during startup, before the broker connects,
// so queued commands are not lost.
func (s *Service) SubscribeCommands(commands Commands) error {
	s.commands = commands
	boolPatch := func(objectID string, set func(patch *types.SettingsPatch, v bool)) error {
		return s.broker.Subscribe(s.commandTopic("switch", objectID), func(topic string, payload []byte) {
			v, ok := parseOnOff(string(payload))
			if !ok {
				s.logger.Warn("ignoring switch command", "topic", topic, "payload", string(payload))
				return
			}
			var patch types.SettingsPatch
			set(&patch, v)
			s.applyPatch(topic, patch)
		})
	}
	floatPatch := func(objectID string, set func(patch *types.SettingsPatch, v float64)) error {
		return s.broker.Subscribe(s.commandTopic("number", objectID), func(topic string, payload []byte) {
			v, err := strconv.ParseFloat(string(payload), 64)
			if err != nil {
				s.logger.Warn("ignoring number command", "topic", topic, "payload", string(payload))
				return
			}
			var patch types.SettingsPatch
			set(&patch, v)
			s.applyPatch(topic, patch)
		})
	}

	if err := boolPatch("show_marker", func(p *types.SettingsPatch, v bool) { p.ShowMarker = &v }); err != nil {
		return err
	}
	if err := boolPatch("show_legend", func(p *types.SettingsPatch, v bool) { p.ShowLegend = &v }); err != nil {
		return err
	}
	if err := boolPatch("show_activity_graph", func(p *types.SettingsPatch, v bool) { p.ShowActivityGraph = &v }); err != nil {
		return err
	}
	if err := floatPatch("marker_latitude", func(p *types.SettingsPatch, v float64) { p.MarkerLatitude = &v }); err != nil {
		return err
	}
	if err := floatPatch("marker_longitude", func(p *types.SettingsPatch, v float64) { p.MarkerLongitude = &v }); err != nil {
		return err
	}

	return s.broker.Subscribe(s.commandTopic("button", "force_update"), func(topic string, payload []byte) {
		if string(payload) != "PRESS" {
			s.logger.Warn("ignoring button command", "topic", topic, "payload", string(payload))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := s.commands.ForceRefresh(ctx); err != nil {
			s.logger.Error("forced refresh failed", "error", err)
		}
	})
}

func (s *Service) applyPatch(topic string, patch types.SettingsPatch) {
	settings, err := s.commands.ApplySettings(patch)
	if err != nil {
		s.logger.Error("entity command failed", "topic", topic, "error", err)
		return
	}
	// Echo the resulting state so optimistic UIs settle.
	s.PublishSettings(settings)
}

// PublishUpdate pushes the per-cycle sensor states.
func (s *Service) PublishUpdate(update types.Update) {
	if !s.broker.IsConnected() {
		return
	}
	s.publishState("sensor", "last_updated", update.LastUpdated.Format(time.RFC3339))
	s.publishState("sensor", "strike_count", strconv.Itoa(update.StrikeCount))

	nearest := "None"
	if update.NearestStrikeKm != nil {
		nearest = strconv.FormatFloat(*update.NearestStrikeKm, 'f', 1, 64)
	}
	s.publishState("sensor", "nearest_strike_distance", nearest)
}

// PublishAnimation pushes the GIF to the camera topic, retained so the image
// survives Home Assistant restarts.
func (s *Service) PublishAnimation(gif []byte) {
	if !s.broker.IsConnected() {
		return
	}
	if err := s.broker.Publish(s.cameraTopic(), 0, true, gif); err != nil {
		s.logger.Error("publish camera image failed", "error", err)
	}
}

// PublishSettings mirrors the persisted settings to the switch and number
// state topics.
func (s *Service) PublishSettings(settings types.Settings) {
	if !s.broker.IsConnected() {
		return
	}
	s.publishState("switch", "show_marker", formatOnOff(settings.ShowMarker))
	s.publishState("switch", "show_legend", formatOnOff(settings.ShowLegend))
	s.publishState("switch", "show_activity_graph", formatOnOff(settings.ShowActivityGraph))
	s.publishState("number", "marker_latitude", strconv.FormatFloat(settings.MarkerLatitude, 'f', -1, 64))
	s.publishState("number", "marker_longitude", strconv.FormatFloat(settings.MarkerLongitude, 'f', -1, 64))
}

func (s *Service) publishState(component, objectID, state string) {
	if err := s.broker.Publish(s.stateTopic(component, objectID), 1, true, []byte(state)); err != nil {
		s.logger.Error("publish state failed", "component", component, "object", objectID, "error", err)
	}
}

func parseOnOff(s string) (value, ok bool) {
	switch s {
	case "ON":
		return true, true
	case "OFF":
		return false, true
	default:
		return false, false
	}
}

func formatOnOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
