package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wnt/memescore/internal/score"
	"github.com/wnt/memescore/internal/utils"
)

// Config holds all configuration for the MemeScore service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// HTTP configuration
	HTTPPort    string
	MetricsPort string

	// Logging configuration
	LogLevel string

	// Social platform client
	SocialBaseURL   string
	SocialTimeout   time.Duration
	SocialPageSize  int
	SocialRateLimit float64

	// AI annotation backend, empty disables annotations
	AIBackendURL string
	AITimeout    time.Duration

	// Scoring
	ScoreWindow time.Duration
	Weights     score.Weights

	// Recompute triggers
	RecomputeConcurrency int
	RecomputeCron        string

	// Queue configuration, empty RedisURL disables the queue
	RedisURL   string
	MinWorkers int
	MaxWorkers int

	// Chain configuration, empty RPCEndpoints disables receipt verification
	RPCEndpoints       []string
	TipContractAddress string
}

var weightKeys = map[string]func(w *score.Weights, v float64){
	"SCORE_WEIGHT_ENGAGEMENT": func(w *score.Weights, v float64) { w.Engagement = v },
	"SCORE_WEIGHT_LIKES":      func(w *score.Weights, v float64) { w.Likes = v },
	"SCORE_WEIGHT_REPLIES":    func(w *score.Weights, v float64) { w.Replies = v },
	"SCORE_WEIGHT_REPOSTS":    func(w *score.Weights, v float64) { w.Reposts = v },
	"SCORE_WEIGHT_QUOTES":     func(w *score.Weights, v float64) { w.Quotes = v },
	"SCORE_WEIGHT_VIEW":       func(w *score.Weights, v float64) { w.View = v },
	"SCORE_WEIGHT_FOLLOW":     func(w *score.Weights, v float64) { w.Follow = v },
	"SCORE_WEIGHT_TIP_COUNT":  func(w *score.Weights, v float64) { w.TipCount = v },
	"SCORE_WEIGHT_TIP_AMOUNT": func(w *score.Weights, v float64) { w.TipAmount = v },
}

// Load reads configuration from the environment (and CONFIG_FILE when set) and validates it
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		DBHost:               v.GetString("DB_HOST"),
		DBPort:               v.GetString("DB_PORT"),
		DBUser:               v.GetString("DB_USER"),
		DBPassword:           v.GetString("DB_PASSWORD"),
		DBName:               v.GetString("DB_NAME"),
		DBSSLMode:            v.GetString("DB_SSL_MODE"),
		HTTPPort:             v.GetString("HTTP_PORT"),
		MetricsPort:          v.GetString("METRICS_PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		SocialBaseURL:        strings.TrimRight(v.GetString("SOCIAL_BASE_URL"), "/"),
		SocialTimeout:        v.GetDuration("SOCIAL_TIMEOUT"),
		SocialPageSize:       v.GetInt("SOCIAL_PAGE_SIZE"),
		SocialRateLimit:      v.GetFloat64("SOCIAL_RATE_LIMIT"),
		AIBackendURL:         strings.TrimRight(v.GetString("AI_BACKEND_URL"), "/"),
		AITimeout:            v.GetDuration("AI_TIMEOUT"),
		ScoreWindow:          v.GetDuration("SCORE_WINDOW"),
		RecomputeConcurrency: v.GetInt("RECOMPUTE_CONCURRENCY"),
		RecomputeCron:        v.GetString("RECOMPUTE_CRON"),
		RedisURL:             v.GetString("REDIS_URL"),
		MinWorkers:           v.GetInt("MIN_WORKERS"),
		MaxWorkers:           v.GetInt("MAX_WORKERS"),
		TipContractAddress:   v.GetString("TIP_CONTRACT_ADDRESS"),
	}

	weights, err := loadWeights(v)
	if err != nil {
		return cfg, err
	}
	cfg.Weights = weights

	// Parse RPC endpoints
	if endpoints := v.GetString("RPC_ENDPOINTS"); endpoints != "" {
		cfg.RPCEndpoints = utils.Filter(
			utils.Map(strings.Split(endpoints, ","), strings.TrimSpace),
			func(endpoint string) bool { return endpoint != "" },
		)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("HTTP_PORT", "4000")
	v.SetDefault("METRICS_PORT", "9100")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SOCIAL_BASE_URL", "https://insectarium-public-api.memex.xyz")
	v.SetDefault("SOCIAL_TIMEOUT", 15*time.Second)
	v.SetDefault("SOCIAL_PAGE_SIZE", 50)
	v.SetDefault("SOCIAL_RATE_LIMIT", 5.0)
	v.SetDefault("AI_TIMEOUT", 20*time.Second)
	v.SetDefault("SCORE_WINDOW", 7*24*time.Hour)
	v.SetDefault("SCORE_FORMULA_VERSION", score.CurrentVersion)
	v.SetDefault("RECOMPUTE_CONCURRENCY", 4)
	v.SetDefault("MIN_WORKERS", 1)
	v.SetDefault("MAX_WORKERS", 8)
}

// loadWeights returns the registered weight set of SCORE_FORMULA_VERSION.
// Per-weight overrides are only accepted under an unregistered version, which
// starts from V2.
func loadWeights(v *viper.Viper) (score.Weights, error) {
	version := v.GetString("SCORE_FORMULA_VERSION")
	weights, registered := score.Lookup(version)
	if !registered {
		weights = score.V2
		weights.Version = version
	}

	for key, set := range weightKeys {
		if v.GetString(key) == "" {
			continue
		}
		// A registered label must always mean its registered weights
		if registered {
			return weights, fmt.Errorf("%s requires a custom SCORE_FORMULA_VERSION, %q is registered (registered: %s)",
				key, version, strings.Join(score.Versions(), ", "))
		}
		value, err := parseFloat(v, key)
		if err != nil {
			return weights, err
		}
		set(&weights, value)
	}

	return weights, nil
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	raw := v.GetString(key)
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return f, nil
}

// validate checks that the configuration is valid
func (c Config) validate() error {
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.SocialBaseURL == "" {
		return fmt.Errorf("SOCIAL_BASE_URL is required")
	}

	if c.SocialTimeout <= 0 {
		return fmt.Errorf("SOCIAL_TIMEOUT must be positive")
	}

	if c.SocialPageSize < 1 || c.SocialPageSize > 100 {
		return fmt.Errorf("SOCIAL_PAGE_SIZE must be between 1 and 100")
	}

	if c.SocialRateLimit <= 0 {
		return fmt.Errorf("SOCIAL_RATE_LIMIT must be positive")
	}

	if c.AIBackendURL != "" && c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}

	if c.ScoreWindow <= 0 {
		return fmt.Errorf("SCORE_WINDOW must be positive")
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}

	if c.RecomputeConcurrency < 1 {
		return fmt.Errorf("RECOMPUTE_CONCURRENCY must be at least 1")
	}

	if c.MinWorkers < 1 {
		return fmt.Errorf("MIN_WORKERS must be at least 1")
	}

	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("MAX_WORKERS must be greater than or equal to MIN_WORKERS")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// QueueEnabled reports whether a Redis recompute queue is configured
func (c Config) QueueEnabled() bool {
	return c.RedisURL != ""
}

// DSN builds the Postgres connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}
