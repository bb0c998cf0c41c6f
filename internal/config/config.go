package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"go-optical-measure/internal/landmark"
	"go-optical-measure/internal/logger"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MeasureTimeout     time.Duration
	MaxRequestBodySize int64

	LandmarkStrategy      landmark.Strategy
	LandmarkModelManifest string

	MaxImageDimension int
	DefaultDPI        float64
	CardMinConfidence float64

	// MaxMonocularAsymmetryMm is the left/right monocular PD gap flagged for review
	MaxMonocularAsymmetryMm float64

	// AllowedImageHosts restricts image_url hosts; empty admits any host.
	// Entries starting with "." match every subdomain.
	AllowedImageHosts []string

	RateLimitRPS   float64
	RateLimitBurst int

	AzureStorageAccount string
	AzureStorageKey     string

	Log logger.Options
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob credentials are configured
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadDotEnv loads variables from the given files, or .env when none are given.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MeasureTimeout:     parseDurationOrDefault("MEASURE_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		LandmarkModelManifest: strings.TrimSpace(os.Getenv("LANDMARK_MODEL_MANIFEST")),

		MaxImageDimension: int(parseIntOrDefault("MAX_IMAGE_DIMENSION", 1280)),
		DefaultDPI:        parseFloatOrDefault("DEFAULT_DPI", 96),
		CardMinConfidence: parseFloatOrDefault("CARD_MIN_CONFIDENCE", 0.6),

		MaxMonocularAsymmetryMm: parseFloatOrDefault("MAX_MONOCULAR_ASYMMETRY_MM", 3),
		AllowedImageHosts:       parseListOrDefault("ALLOWED_IMAGE_HOSTS", nil),

		RateLimitRPS:   parseFloatOrDefault("RATE_LIMIT_RPS", 10),
		RateLimitBurst: int(parseIntOrDefault("RATE_LIMIT_BURST", 20)),

		AzureStorageAccount: strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureStorageKey:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),

		Log: logger.Options{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	// the model strategy is the default only when a manifest is configured
	defaultStrategy := string(landmark.StrategyHeuristic)
	if cfg.LandmarkModelManifest != "" {
		defaultStrategy = string(landmark.StrategyModel)
	}
	strategy, err := landmark.ParseStrategy(strings.ToLower(getEnvOrDefault("LANDMARK_STRATEGY", defaultStrategy)))
	if err != nil {
		return nil, fmt.Errorf("invalid LANDMARK_STRATEGY: %w", err)
	}
	cfg.LandmarkStrategy = strategy

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.MeasureTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, measure=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.MeasureTimeout)
	}
	if c.LandmarkStrategy == landmark.StrategyModel && c.LandmarkModelManifest == "" {
		return errors.New("LANDMARK_MODEL_MANIFEST is required for the model strategy")
	}
	if c.MaxImageDimension <= 0 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be > 0 (got %d)", c.MaxImageDimension)
	}
	if c.DefaultDPI <= 0 {
		return fmt.Errorf("DEFAULT_DPI must be > 0 (got %g)", c.DefaultDPI)
	}
	if c.CardMinConfidence <= 0 || c.CardMinConfidence > 1 {
		return fmt.Errorf("CARD_MIN_CONFIDENCE must be in (0, 1] (got %g)", c.CardMinConfidence)
	}
	if c.MaxMonocularAsymmetryMm <= 0 {
		return fmt.Errorf("MAX_MONOCULAR_ASYMMETRY_MM must be > 0 (got %g)", c.MaxMonocularAsymmetryMm)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must be >= 0 (got rps=%g, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	if (c.AzureStorageAccount == "") != (c.AzureStorageKey == "") {
		return errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// parseListOrDefault splits a comma-separated value, dropping blank entries
func parseListOrDefault(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
