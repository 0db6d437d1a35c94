package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"blitzmap-server/internal/migrate"
	"blitzmap-server/internal/modules/lightning/types"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if err := migrate.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func strikeAt(t time.Time, lat, lon float64) types.Strike {
	return types.Strike{TimeNs: t.UnixNano(), Lat: lat, Lon: lon}
}

func TestInsertStrikes_Dedup(t *testing.T) {
	repo := NewStrikeRepository(setupTestDB(t))
	now := time.Now()

	batch := []types.Strike{
		strikeAt(now.Add(-time.Minute), 52.1, 5.2),
		strikeAt(now.Add(-2*time.Minute), 48.8, 2.3),
	}

	inserted, err := repo.InsertStrikes(batch)
	if err != nil {
		t.Fatalf("InsertStrikes: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	// The same batch again, plus one new strike.
	batch = append(batch, strikeAt(now, 51.0, 4.0))
	inserted, err = repo.InsertStrikes(batch)
	if err != nil {
		t.Fatalf("InsertStrikes (second): %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 (duplicates ignored)", inserted)
	}
}

func TestInsertStrikes_Empty(t *testing.T) {
	repo := NewStrikeRepository(setupTestDB(t))
	inserted, err := repo.InsertStrikes(nil)
	if err != nil {
		t.Fatalf("InsertStrikes(nil): %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
}

func TestGetStrikesSince(t *testing.T) {
	repo := NewStrikeRepository(setupTestDB(t))
	now := time.Now()

	_, err := repo.InsertStrikes([]types.Strike{
		strikeAt(now.Add(-3*time.Hour), 50, 5),
		strikeAt(now.Add(-30*time.Minute), 51, 6),
		strikeAt(now.Add(-time.Minute), 52, 7),
	})
	if err != nil {
		t.Fatalf("InsertStrikes: %v", err)
	}

	got, err := repo.GetStrikesSince(now.Add(-2*time.Hour), 100)
	if err != nil {
		t.Fatalf("GetStrikesSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d strikes, want 2", len(got))
	}
	// Ordered oldest first.
	if got[0].Lat != 51 || got[1].Lat != 52 {
		t.Errorf("order wrong: %+v", got)
	}
	if got[0].ReceivedAt.IsZero() {
		t.Error("ReceivedAt not populated")
	}
}

func TestGetStrikesSince_Limit(t *testing.T) {
	repo := NewStrikeRepository(setupTestDB(t))
	now := time.Now()

	var batch []types.Strike
	for i := 0; i < 10; i++ {
		batch = append(batch, strikeAt(now.Add(-time.Duration(i)*time.Minute), 50+float64(i), 5))
	}
	if _, err := repo.InsertStrikes(batch); err != nil {
		t.Fatalf("InsertStrikes: %v", err)
	}

	got, err := repo.GetStrikesSince(now.Add(-time.Hour), 3)
	if err != nil {
		t.Fatalf("GetStrikesSince: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d strikes, want 3", len(got))
	}
}

func TestDeleteStrikesBefore(t *testing.T) {
	repo := NewStrikeRepository(setupTestDB(t))
	now := time.Now()

	_, err := repo.InsertStrikes([]types.Strike{
		strikeAt(now.Add(-3*time.Hour), 50, 5),
		strikeAt(now.Add(-time.Minute), 52, 7),
	})
	if err != nil {
		t.Fatalf("InsertStrikes: %v", err)
	}

	deleted, err := repo.DeleteStrikesBefore(now.Add(-2 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteStrikesBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	remaining, err := repo.GetStrikesSince(time.Unix(0, 0), 100)
	if err != nil {
		t.Fatalf("GetStrikesSince: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining = %d, want 1", len(remaining))
	}
}

func TestSettings_DefaultsWhenEmpty(t *testing.T) {
	defaults := types.Settings{
		MarkerLatitude:  52.1,
		MarkerLongitude: 5.18,
		ShowMarker:      true,
		ShowLegend:      true,
	}
	repo := NewSettingsRepository(setupTestDB(t), defaults)

	got, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != defaults {
		t.Errorf("Load = %+v, want defaults %+v", got, defaults)
	}
}

func TestSettings_SaveLoadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db, types.Settings{})

	want := types.Settings{
		MarkerLatitude:    51.92,
		MarkerLongitude:   4.47,
		ShowMarker:        true,
		ShowLegend:        false,
		ShowActivityGraph: true,
	}
	if err := repo.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestSettings_SaveOverwrites(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t), types.Settings{})

	if err := repo.Save(types.Settings{MarkerLatitude: 50}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := repo.Save(types.Settings{MarkerLatitude: 51, ShowLegend: true}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MarkerLatitude != 51 || !got.ShowLegend {
		t.Errorf("Load = %+v", got)
	}
}
