package types

import "time"

// Strike is one stored lightning discharge.
type Strike struct {
	TimeNs     int64     `json:"time"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Time converts the feed's nanosecond timestamp to a time.Time.
func (s Strike) Time() time.Time {
	return time.Unix(0, s.TimeNs)
}

// Settings are the user-tunable render options, persisted across restarts.
type Settings struct {
	MarkerLatitude    float64 `json:"markerLatitude"`
	MarkerLongitude   float64 `json:"markerLongitude"`
	ShowMarker        bool    `json:"showMarker"`
	ShowLegend        bool    `json:"showLegend"`
	ShowActivityGraph bool    `json:"showActivityGraph"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	MarkerLatitude    *float64 `json:"markerLatitude,omitempty"`
	MarkerLongitude   *float64 `json:"markerLongitude,omitempty"`
	ShowMarker        *bool    `json:"showMarker,omitempty"`
	ShowLegend        *bool    `json:"showLegend,omitempty"`
	ShowActivityGraph *bool    `json:"showActivityGraph,omitempty"`
}

// Apply returns the settings with the patch's non-nil fields applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.MarkerLatitude != nil {
		s.MarkerLatitude = *p.MarkerLatitude
	}
	if p.MarkerLongitude != nil {
		s.MarkerLongitude = *p.MarkerLongitude
	}
	if p.ShowMarker != nil {
		s.ShowMarker = *p.ShowMarker
	}
	if p.ShowLegend != nil {
		s.ShowLegend = *p.ShowLegend
	}
	if p.ShowActivityGraph != nil {
		s.ShowActivityGraph = *p.ShowActivityGraph
	}
	return s
}

// Validate checks coordinate ranges.
func (p SettingsPatch) Validate() error {
	if p.MarkerLatitude != nil && (*p.MarkerLatitude < -90 || *p.MarkerLatitude > 90) {
		return &RangeError{Field: "markerLatitude", Min: -90, Max: 90}
	}
	if p.MarkerLongitude != nil && (*p.MarkerLongitude < -180 || *p.MarkerLongitude > 180) {
		return &RangeError{Field: "markerLongitude", Min: -180, Max: 180}
	}
	return nil
}

// RangeError reports a numeric field outside its allowed range.
type RangeError struct {
	Field    string
	Min, Max float64
}

func (e *RangeError) Error() string {
	return e.Field + " out of range"
}

// Update is the per-cycle entity state derived from stored strikes.
type Update struct {
	LastUpdated     time.Time `json:"lastUpdated"`
	StrikeCount     int       `json:"strikeCount"`
	NearestStrikeKm *float64  `json:"nearestStrikeKm,omitempty"`
}

// ActivityBucket is one bar of the activity graph in API responses.
type ActivityBucket struct {
	AgeMinutes int `json:"ageMinutes"`
	Count      int `json:"count"`
}
