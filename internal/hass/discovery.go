// Package hass exposes the lightning map to Home Assistant over MQTT
// discovery: a camera for the animation, sensors for the per-cycle state, and
// switches, numbers, and a button for the render controls.
package hass

import (
	"fmt"
)

const (
	nodeID = "blitzmap"

	deviceName         = "Blitzortung Lightning Map"
	deviceManufacturer = "Blitzortung.org"
	deviceModel        = "Lightning Map Image"
)

// Device is the discovery device block shared by all entities so Home
// Assistant groups them under one device.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// entityConfig is the union of the discovery payload fields used by the
// entity types we publish; empty fields are omitted.
type entityConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	Device            Device `json:"device"`
	AvailabilityTopic string `json:"availability_topic"`

	StateTopic   string `json:"state_topic,omitempty"`
	CommandTopic string `json:"command_topic,omitempty"`
	Topic        string `json:"topic,omitempty"` // camera image topic

	DeviceClass       string `json:"device_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	Icon              string `json:"icon,omitempty"`

	// number
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step float64  `json:"step,omitempty"`
	Mode string   `json:"mode,omitempty"`

	// button
	PayloadPress string `json:"payload_press,omitempty"`
}

// entity pairs a discovery component/object with its config payload.
type entity struct {
	component string
	objectID  string
	config    entityConfig
}

// discoveryTopic is where the retained config for one entity lives.
func discoveryTopic(prefix, component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, nodeID, objectID)
}

func (s *Service) device() Device {
	return Device{
		Identifiers:  []string{nodeID},
		Name:         deviceName,
		Manufacturer: deviceManufacturer,
		Model:        deviceModel,
		SWVersion:    s.version,
	}
}

func (s *Service) entities() []entity {
	device := s.device()
	base := func(name, objectID string) entityConfig {
		return entityConfig{
			Name:              name,
			UniqueID:          nodeID + "_" + objectID,
			Device:            device,
			AvailabilityTopic: s.availabilityTopic,
		}
	}
	f := func(v float64) *float64 { return &v }

	cameraCfg := base("Lightning", "map")
	cameraCfg.Topic = s.cameraTopic()

	lastUpdated := base("Lightning last updated", "last_updated")
	lastUpdated.StateTopic = s.stateTopic("sensor", "last_updated")
	lastUpdated.DeviceClass = "timestamp"

	strikeCount := base("Lightning strike count", "strike_count")
	strikeCount.StateTopic = s.stateTopic("sensor", "strike_count")
	strikeCount.Icon = "mdi:flash"

	nearest := base("Nearest strike distance", "nearest_strike_distance")
	nearest.StateTopic = s.stateTopic("sensor", "nearest_strike_distance")
	nearest.DeviceClass = "distance"
	nearest.UnitOfMeasurement = "km"

	markerLat := base("Marker latitude", "marker_latitude")
	markerLat.StateTopic = s.stateTopic("number", "marker_latitude")
	markerLat.CommandTopic = s.commandTopic("number", "marker_latitude")
	markerLat.Min, markerLat.Max, markerLat.Step = f(-90), f(90), 0.01
	markerLat.Mode = "box"
	markerLat.Icon = "mdi:latitude"

	markerLon := base("Marker longitude", "marker_longitude")
	markerLon.StateTopic = s.stateTopic("number", "marker_longitude")
	markerLon.CommandTopic = s.commandTopic("number", "marker_longitude")
	markerLon.Min, markerLon.Max, markerLon.Step = f(-180), f(180), 0.01
	markerLon.Mode = "box"
	markerLon.Icon = "mdi:longitude"

	showMarker := base("Show marker", "show_marker")
	showMarker.StateTopic = s.stateTopic("switch", "show_marker")
	showMarker.CommandTopic = s.commandTopic("switch", "show_marker")
	showMarker.Icon = "mdi:map-marker"

	showLegend := base("Show legend", "show_legend")
	showLegend.StateTopic = s.stateTopic("switch", "show_legend")
	showLegend.CommandTopic = s.commandTopic("switch", "show_legend")
	showLegend.Icon = "mdi:map-legend"

	showActivity := base("Show activity graph", "show_activity_graph")
	showActivity.StateTopic = s.stateTopic("switch", "show_activity_graph")
	showActivity.CommandTopic = s.commandTopic("switch", "show_activity_graph")
	showActivity.Icon = "mdi:chart-bar"

	forceUpdate := base("Force map update", "force_update")
	forceUpdate.CommandTopic = s.commandTopic("button", "force_update")
	forceUpdate.PayloadPress = "PRESS"
	forceUpdate.Icon = "mdi:refresh"

	return []entity{
		{"camera", "map", cameraCfg},
		{"sensor", "last_updated", lastUpdated},
		{"sensor", "strike_count", strikeCount},
		{"sensor", "nearest_strike_distance", nearest},
		{"number", "marker_latitude", markerLat},
		{"number", "marker_longitude", markerLon},
		{"switch", "show_marker", showMarker},
		{"switch", "show_legend", showLegend},
		{"switch", "show_activity_graph", showActivity},
		{"button", "force_update", forceUpdate},
	}
}
