package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	DataDir   string
	InputFile string
	OutputDir string
	OutputPNG string
	OutputNC  string
	LogLevel  string
	LogFormat string

	// Map rendering. An empty CoastlineShapefile uses the built-in coarse
	// coastlines and "none" disables them.
	CoastlineShapefile string
	PlotDPI            int
	PlotWidthInches    float64
	PlotHeightInches   float64

	// Optional collaborators. Each is disabled when its address or token is unset.
	PushgatewayURL string
	PublishTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	publishTimeout, err := parsePositiveDuration("PUBLISH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	dpi, err := parsePositiveInt("PLOT_DPI", 150)
	if err != nil {
		return nil, err
	}
	width, err := parsePositiveFloat("PLOT_WIDTH", 9)
	if err != nil {
		return nil, err
	}
	height, err := parsePositiveFloat("PLOT_HEIGHT", 7)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		DataDir:   sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		InputFile: sharedcfg.EnvOrDefault("INPUT_FILE", "wrfout_d03_2024-03-12_00:00:00"),
		OutputDir: sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		OutputPNG: sharedcfg.EnvOrDefault("OUTPUT_PNG", "rain_rate_map.png"),
		OutputNC:  sharedcfg.EnvOrDefault("OUTPUT_NC", "rain_rate_wrf.nc"),
		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		CoastlineShapefile: os.Getenv("COASTLINE_SHAPEFILE"),
		PlotDPI:            dpi,
		PlotWidthInches:    width,
		PlotHeightInches:   height,

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		PublishTimeout: publishTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "rain-rate-products"),
		KafkaEnabled: kafkaEnabled,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.InputFile == "" {
		return nil, errors.New("INPUT_FILE is required")
	}
	if cfg.OutputPNG == "" || cfg.OutputNC == "" {
		return nil, errors.New("OUTPUT_PNG and OUTPUT_NC are required")
	}
	if filepath.Clean(cfg.OutputPNG) == filepath.Clean(cfg.OutputNC) {
		return nil, errors.New("OUTPUT_PNG and OUTPUT_NC must differ")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text)", cfg.LogFormat)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// InputPath resolves the input file against the data directory unless it is absolute.
func (c *Config) InputPath() string {
	if filepath.IsAbs(c.InputFile) {
		return c.InputFile
	}
	return filepath.Join(c.DataDir, c.InputFile)
}

// ImagePath is the destination of the rendered map.
func (c *Config) ImagePath() string {
	return c.outputPath(c.OutputPNG)
}

// DataPath is the destination of the NetCDF rate field.
func (c *Config) DataPath() string {
	return c.outputPath(c.OutputNC)
}

func (c *Config) outputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 100
}
