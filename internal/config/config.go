package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StorageDir holds rendered frames and the animated GIF.
	// Set via STORAGE_DIR (relative paths are resolved against the process working directory at startup).
	StorageDir string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration

	MQTTBroker          string
	MQTTPort            int
	MQTTClientID        string
	MQTTDiscoveryPrefix string
	MQTTBaseTopic       string

	// Blitzortung feed credentials (network participants only).
	Username string
	Password string

	FetchInterval time.Duration
	MapProfile    string

	// Default marker position, used until the marker is moved through
	// Home Assistant or the settings API.
	MarkerLatitude  float64
	MarkerLongitude float64
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	storageDir := strings.TrimSpace(os.Getenv("STORAGE_DIR"))
	if storageDir == "" {
		storageDir = "storage"
	}
	storageDir, err = filepath.Abs(storageDir)
	if err != nil {
		return Config{}, fmt.Errorf("STORAGE_DIR %q: %w", storageDir, err)
	}

	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if path == "" {
		path = "dev/sqlite/blitzmap.db"
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}

	connMaxLifetimeStr := strings.TrimSpace(os.Getenv("DB_CONN_MAX_LIFETIME"))
	if connMaxLifetimeStr == "" {
		connMaxLifetimeStr = "0s"
	}
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}
	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "blitzmap-server"
	}
	discoveryPrefix := strings.TrimSpace(os.Getenv("MQTT_DISCOVERY_PREFIX"))
	if discoveryPrefix == "" {
		discoveryPrefix = "homeassistant"
	}
	baseTopic := strings.TrimSpace(os.Getenv("MQTT_BASE_TOPIC"))
	if baseTopic == "" {
		baseTopic = "blitzmap"
	}

	username := strings.TrimSpace(os.Getenv("BLITZORTUNG_USERNAME"))
	if username == "" {
		return Config{}, fmt.Errorf("BLITZORTUNG_USERNAME is required")
	}
	password := os.Getenv("BLITZORTUNG_PASSWORD")
	if password == "" {
		return Config{}, fmt.Errorf("BLITZORTUNG_PASSWORD is required")
	}

	fetchIntervalStr := strings.TrimSpace(os.Getenv("FETCH_INTERVAL"))
	if fetchIntervalStr == "" {
		fetchIntervalStr = "60s"
	}
	fetchInterval, err := time.ParseDuration(fetchIntervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FETCH_INTERVAL %q: %w", fetchIntervalStr, err)
	}
	if fetchInterval < 10*time.Second {
		return Config{}, fmt.Errorf("FETCH_INTERVAL %s too short (minimum 10s)", fetchInterval)
	}

	mapProfile := strings.TrimSpace(os.Getenv("MAP_PROFILE"))
	if mapProfile == "" {
		mapProfile = "europe"
	}

	markerLat, err := floatFromEnv("MARKER_LATITUDE", 52.1)
	if err != nil {
		return Config{}, err
	}
	if markerLat < -90 || markerLat > 90 {
		return Config{}, fmt.Errorf("MARKER_LATITUDE %v out of range [-90, 90]", markerLat)
	}
	markerLon, err := floatFromEnv("MARKER_LONGITUDE", 5.18)
	if err != nil {
		return Config{}, err
	}
	if markerLon < -180 || markerLon > 180 {
		return Config{}, fmt.Errorf("MARKER_LONGITUDE %v out of range [-180, 180]", markerLon)
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		StorageDir:            storageDir,
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTDiscoveryPrefix:   discoveryPrefix,
		MQTTBaseTopic:         baseTopic,
		Username:              username,
		Password:              password,
		FetchInterval:         fetchInterval,
		MapProfile:            mapProfile,
		MarkerLatitude:        markerLat,
		MarkerLongitude:       markerLon,
	}, nil
}

func floatFromEnv(name string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func intFromEnv(name string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return n, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
