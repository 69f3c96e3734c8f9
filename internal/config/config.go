package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedURL            string
	FeedTimeout        time.Duration
	PollInterval       time.Duration
	MagnitudeThreshold float64

	// State backend: "file" keeps slots under StateDir, "redis" under RedisKeyPrefix.
	StateBackend   string
	StateDir       string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Static map and overlay.
	MapAPIURL     string
	MapSpan       domain.Span
	MapMarker     string
	MapTimeout    time.Duration
	FontFile      string
	FontSize      float64
	WatermarkFile string

	// USGS detail enrichment.
	DetailURL       string
	PlacesURL       string
	DetailTimeout   time.Duration
	PlacesCacheSize int

	TelegramToken     string
	TelegramChannelID string
	TelegramEndpoint  string
	TelegramTimeout   time.Duration

	// Publication archive; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the environment, applying
// defaults where unset. Telegram credentials are required.
func Load() (*Config, error) {
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_TOKEN is required")
	}
	if cfg.TelegramChannelID == "" {
		return nil, errors.New("TELEGRAM_CHANNEL_ID is required")
	}
	return cfg, nil
}

// LoadLocal is Load without the delivery requirements, for commands that
// never publish.
func LoadLocal() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parseDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	mapTimeout, err := parseDuration("MAP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	detailTimeout, err := parseDuration("DETAIL_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	telegramTimeout, err := parseDuration("TELEGRAM_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	threshold, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAGNITUDE_THRESHOLD", "2.5"), 64)
	if err != nil || math.IsNaN(threshold) {
		return nil, errors.New("invalid MAGNITUDE_THRESHOLD")
	}

	fontSize, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FONT_SIZE", "24"), 64)
	if err != nil || fontSize <= 0 {
		return nil, errors.New("invalid FONT_SIZE")
	}

	span, err := domain.ParseSpan(sharedcfg.EnvOrDefault("MAP_SPAN", "10,10"))
	if err != nil {
		return nil, errors.New("invalid MAP_SPAN")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		FeedURL:            sharedcfg.EnvOrDefault("FEED_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson"),
		FeedTimeout:        feedTimeout,
		PollInterval:       pollInterval,
		MagnitudeThreshold: threshold,

		StateBackend:   strings.ToLower(sharedcfg.EnvOrDefault("STATE_BACKEND", "file")),
		StateDir:       sharedcfg.EnvOrDefault("STATE_DIR", "."),
		RedisAddr:      sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		RedisKeyPrefix: sharedcfg.EnvOrDefault("REDIS_KEY_PREFIX", "quakewatch:"),

		MapAPIURL:     sharedcfg.EnvOrDefault("MAP_API_URL", "https://static-maps.yandex.ru/1.x/"),
		MapSpan:       span,
		MapMarker:     sharedcfg.EnvOrDefault("MAP_MARKER", "round"),
		MapTimeout:    mapTimeout,
		FontFile:      os.Getenv("FONT_FILE"),
		FontSize:      fontSize,
		WatermarkFile: os.Getenv("WATERMARK_FILE"),

		DetailURL:       sharedcfg.EnvOrDefault("USGS_DETAIL_URL", "https://earthquake.usgs.gov/fdsnws/event/1/query"),
		PlacesURL:       sharedcfg.EnvOrDefault("USGS_PLACES_URL", "https://earthquake.usgs.gov/ws/geoserve/places.json"),
		DetailTimeout:   detailTimeout,
		PlacesCacheSize: parsePlacesCacheSize(),

		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		TelegramChannelID: os.Getenv("TELEGRAM_CHANNEL_ID"),
		TelegramEndpoint:  os.Getenv("TELEGRAM_API_ENDPOINT"),
		TelegramTimeout:   telegramTimeout,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "quake-publications"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	switch cfg.StateBackend {
	case "file", "redis":
	default:
		return nil, errors.New("invalid STATE_BACKEND: want file or redis")
	}
	if cfg.ArchiveEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// ArchiveEnabled reports whether publications are written to Kafka.
func (c *Config) ArchiveEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// MapFile is the composited map attached to notifications.
func (c *Config) MapFile() string {
	return filepath.Join(c.StateDir, "new_map.png")
}

// BaseMapFile is the raw tile kept beside MapFile.
func (c *Config) BaseMapFile() string {
	return filepath.Join(c.StateDir, "map.png")
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return d, nil
}

func parseBrokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

func parsePlacesCacheSize() int {
	if s := os.Getenv("PLACES_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
