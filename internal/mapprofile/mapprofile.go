// Package mapprofile resolves named map view presets (bounding box and render
// width) from an embedded YAML file.
package mapprofile

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Profile is one map view: the geographic bounding box the feed is queried
// and rendered for, plus the pixel width of rendered frames.
type Profile struct {
	West  float64 `yaml:"west"`
	East  float64 `yaml:"east"`
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	Width int     `yaml:"width"`
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Bounds returns the profile's bounding box as an s2 rectangle.
func (p Profile) Bounds() s2.Rect {
	r := s2.RectFromLatLng(s2.LatLngFromDegrees(p.South, p.West))
	return r.AddPoint(s2.LatLngFromDegrees(p.North, p.East))
}

// Contains reports whether the coordinate lies inside the profile bbox.
func (p Profile) Contains(lat, lon float64) bool {
	return p.Bounds().ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

func (p Profile) validate(name string) error {
	if p.West >= p.East {
		return fmt.Errorf("profile %q: west (%v) must be < east (%v)", name, p.West, p.East)
	}
	if p.South >= p.North {
		return fmt.Errorf("profile %q: south (%v) must be < north (%v)", name, p.South, p.North)
	}
	if p.North >= 85 || p.South <= -85 {
		return fmt.Errorf("profile %q: latitudes must stay within the Mercator range (-85, 85)", name)
	}
	if p.Width <= 0 {
		return fmt.Errorf("profile %q: width must be positive", name)
	}
	return nil
}

func load() (map[string]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(profilesYAML, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}
	for name, p := range f.Profiles {
		if err := p.validate(name); err != nil {
			return nil, err
		}
	}
	return f.Profiles, nil
}

// Lookup returns the named profile from the embedded presets.
func Lookup(name string) (Profile, error) {
	profiles, err := load()
	if err != nil {
		return Profile{}, err
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown map profile %q (available: %v)", name, names(profiles))
	}
	return p, nil
}

func names(profiles map[string]Profile) []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
