package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"blitzmap-server/internal/config"
	"blitzmap-server/internal/modules/lightning/types"
)

// SettingsDefaults derives the initial render settings from configuration.
// Marker and legend start visible, the activity graph off, matching a fresh
// install before the user has touched the switches.
func SettingsDefaults(cfg config.Config) types.Settings {
	return types.Settings{
		MarkerLatitude:  cfg.MarkerLatitude,
		MarkerLongitude: cfg.MarkerLongitude,
		ShowMarker:      true,
		ShowLegend:      true,
	}
}

//go:embed sql/insert-strike.sql
var insertStrikeSQL string

//go:embed sql/get-strikes-since.sql
var getStrikesSinceSQL string

//go:embed sql/delete-strikes-before.sql
var deleteStrikesBeforeSQL string

//go:embed sql/get-settings.sql
var getSettingsSQL string

//go:embed sql/upsert-setting.sql
var upsertSettingSQL string

type StrikeRepository interface {
	InsertStrikes(strikes []types.Strike) (int, error)
	GetStrikesSince(since time.Time, limit int) ([]types.Strike, error)
	DeleteStrikesBefore(before time.Time) (int64, error)
}

type SettingsRepository interface {
	Load() (types.Settings, error)
	Save(s types.Settings) error
}

type strikeRepositoryImpl struct {
	db *sql.DB
}

func NewStrikeRepository(db *sql.DB) StrikeRepository {
	return &strikeRepositoryImpl{db: db}
}

// InsertStrikes stores the batch inside one transaction and returns the
// number of newly inserted rows. Re-fetched strikes dedup on the primary key.
func (r *strikeRepositoryImpl) InsertStrikes(strikes []types.Strike) (int, error) {
	if len(strikes) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("rollback insert strikes", "error", err)
		}
	}()

	stmt, err := tx.Prepare(insertStrikeSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range strikes {
		res, err := stmt.Exec(s.TimeNs, s.Lat, s.Lon)
		if err != nil {
			return 0, fmt.Errorf("insert strike: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *strikeRepositoryImpl) GetStrikesSince(since time.Time, limit int) ([]types.Strike, error) {
	rows, err := r.db.Query(getStrikesSinceSQL, since.UnixNano(), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close strikes rows", "error", err)
		}
	}()

	var out []types.Strike
	for rows.Next() {
		var s types.Strike
		var receivedAt string
		if err := rows.Scan(&s.TimeNs, &s.Lat, &s.Lon, &receivedAt); err != nil {
			return nil, err
		}
		t, err := parseTimestamp(receivedAt)
		if err != nil {
			return nil, err
		}
		s.ReceivedAt = t
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *strikeRepositoryImpl) DeleteStrikesBefore(before time.Time) (int64, error) {
	res, err := r.db.Exec(deleteStrikesBeforeSQL, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete strikes: %w", err)
	}
	return res.RowsAffected()
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
		}
	}
	return t, nil
}

// Settings keys in the settings table.
const (
	keyMarkerLatitude    = "marker_latitude"
	keyMarkerLongitude   = "marker_longitude"
	keyShowMarker        = "show_marker"
	keyShowLegend        = "show_legend"
	keyShowActivityGraph = "show_activity_graph"
)

type settingsRepositoryImpl struct {
	db       *sql.DB
	defaults types.Settings
}

// NewSettingsRepository returns a settings store; keys missing from the
// table fall back to the given defaults.
func NewSettingsRepository(db *sql.DB, defaults types.Settings) SettingsRepository {
	return &settingsRepositoryImpl{db: db, defaults: defaults}
}

func (r *settingsRepositoryImpl) Load() (types.Settings, error) {
	rows, err := r.db.Query(getSettingsSQL)
	if err != nil {
		return types.Settings{}, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close settings rows", "error", err)
		}
	}()

	s := r.defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return types.Settings{}, err
		}
		if err := applySetting(&s, key, value); err != nil {
			return types.Settings{}, err
		}
	}
	return s, rows.Err()
}

func applySetting(s *types.Settings, key, value string) error {
	switch key {
	case keyMarkerLatitude, keyMarkerLongitude:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("setting %s=%q: %w", key, value, err)
		}
		if key == keyMarkerLatitude {
			s.MarkerLatitude = v
		} else {
			s.MarkerLongitude = v
		}
	case keyShowMarker, keyShowLegend, keyShowActivityGraph:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s=%q: %w", key, value, err)
		}
		switch key {
		case keyShowMarker:
			s.ShowMarker = v
		case keyShowLegend:
			s.ShowLegend = v
		case keyShowActivityGraph:
			s.ShowActivityGraph = v
		}
	default:
		// Unknown keys are ignored so downgrades stay harmless.
	}
	return nil
}

func (r *settingsRepositoryImpl) Save(s types.Settings) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("rollback save settings", "error", err)
		}
	}()

	pairs := []struct {
		key   string
		value string
	}{
		{keyMarkerLatitude, strconv.FormatFloat(s.MarkerLatitude, 'f', -1, 64)},
		{keyMarkerLongitude, strconv.FormatFloat(s.MarkerLongitude, 'f', -1, 64)},
		{keyShowMarker, strconv.FormatBool(s.ShowMarker)},
		{keyShowLegend, strconv.FormatBool(s.ShowLegend)},
		{keyShowActivityGraph, strconv.FormatBool(s.ShowActivityGraph)},
	}
	for _, p := range pairs {
		if _, err := tx.Exec(upsertSettingSQL, p.key, p.value); err != nil {
			return fmt.Errorf("save setting %s: %w", p.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
