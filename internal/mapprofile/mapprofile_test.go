package mapprofile

import "testing"

func TestLookup_Europe(t *testing.T) {
	p, err := Lookup("europe")
	if err != nil {
		t.Fatalf("Lookup(europe): %v", err)
	}
	if p.West != -12.28 || p.East != 34.98 {
		t.Errorf("longitudes = (%v, %v), want (-12.28, 34.98)", p.West, p.East)
	}
	if p.North != 54.239 || p.South != 35.77 {
		t.Errorf("latitudes = (%v, %v), want (54.239, 35.77)", p.North, p.South)
	}
	if p.Width != 1050 {
		t.Errorf("width = %d, want 1050", p.Width)
	}
}

func TestLookup_Netherlands(t *testing.T) {
	p, err := Lookup("netherlands")
	if err != nil {
		t.Fatalf("Lookup(netherlands): %v", err)
	}
	if !p.Contains(52.37, 4.89) { // Amsterdam
		t.Error("Amsterdam should be inside the netherlands profile")
	}
	if p.Contains(48.85, 2.35) { // Paris
		t.Error("Paris should be outside the netherlands profile")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("atlantis")
	if err == nil {
		t.Fatal("Lookup(atlantis): error = nil, want non-nil")
	}
}

func TestContains_Edges(t *testing.T) {
	p, err := Lookup("europe")
	if err != nil {
		t.Fatalf("Lookup(europe): %v", err)
	}
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{name: "inside", lat: 50, lon: 5, want: true},
		{name: "north of bbox", lat: 60, lon: 5, want: false},
		{name: "west of bbox", lat: 50, lon: -20, want: false},
		{name: "on south edge", lat: 35.77, lon: 5, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Contains(tt.lat, tt.lon); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}
