package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Observability ObservabilityConfig `yaml:"observability"`
	Ranking       RankingConfig       `yaml:"ranking"`
	Queue         QueueConfig         `yaml:"queue"`
}

// PostgresConfig holds Postgres configuration. An empty DSN runs the
// service on the in-memory store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL uses the in-process bus.
type NATSConfig struct {
	URL       string `yaml:"url"`
	JetStream bool   `yaml:"jetstream"`
	Stream    string `yaml:"stream"`
}

// HTTPConfig holds the read API settings.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RatePerSecond  float64  `yaml:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
}

// RankingConfig holds the engine's thresholds and tier catalog.
type RankingConfig struct {
	MinLeaderboardPlayers int  `yaml:"min_leaderboard_players"`
	MinMatchesForPosition int  `yaml:"min_matches_for_position"`
	MaxUpdateRetries      int  `yaml:"max_update_retries"`
	StrictTierCatalog     bool `yaml:"strict_tier_catalog"`
	// DisableTierCatalog runs without a catalog, so every player gets the
	// intermediate rules (or is rejected when StrictTierCatalog is set).
	DisableTierCatalog bool                       `yaml:"disable_tier_catalog"`
	Tiers              []rankingdomain.RatingTier `yaml:"tiers"`
}

// QueueConfig holds the activity sweep schedule.
type QueueConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxWorkers    int           `yaml:"max_workers"`
	RunOnStart    bool          `yaml:"run_on_start"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	cfg := defaults()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		NATS: NATSConfig{Stream: "RANKING"},
		HTTP: HTTPConfig{
			Address:       ":8080",
			RatePerSecond: 10,
			RateBurst:     20,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			Environment: "development",
		},
		Ranking: RankingConfig{
			MinLeaderboardPlayers: 3,
			MinMatchesForPosition: 1,
			MaxUpdateRetries:      5,
		},
		Queue: QueueConfig{
			SweepInterval: 24 * time.Hour,
			MaxWorkers:    5,
		},
	}
}

// applyEnv overrides cfg with any variables that are set. Malformed numbers
// and booleans are errors rather than silently ignored.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_STREAM"); v != "" {
		cfg.NATS.Stream = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}

	if err := envBool("NATS_JETSTREAM", &cfg.NATS.JetStream); err != nil {
		return err
	}
	if err := envInt("RANKING_MIN_LEADERBOARD_PLAYERS", &cfg.Ranking.MinLeaderboardPlayers); err != nil {
		return err
	}
	if err := envInt("RANKING_MIN_MATCHES", &cfg.Ranking.MinMatchesForPosition); err != nil {
		return err
	}
	if err := envInt("RANKING_MAX_UPDATE_RETRIES", &cfg.Ranking.MaxUpdateRetries); err != nil {
		return err
	}
	if err := envBool("RANKING_STRICT_TIER_CATALOG", &cfg.Ranking.StrictTierCatalog); err != nil {
		return err
	}
	if err := envBool("QUEUE_ENABLED", &cfg.Queue.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("QUEUE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUEUE_SWEEP_INTERVAL value: %w", err)
		}
		cfg.Queue.SweepInterval = d
	}
	return nil
}

// TierCatalog builds the configured catalog. It returns nil when the catalog
// is disabled and the default catalog when no tiers are listed.
func (c RankingConfig) TierCatalog() (*rankingdomain.TierCatalog, error) {
	if c.DisableTierCatalog {
		return nil, nil
	}
	if len(c.Tiers) == 0 {
		return rankingdomain.DefaultTierCatalog(), nil
	}
	catalog, err := rankingdomain.NewTierCatalog(c.Tiers)
	if err != nil {
		return nil, fmt.Errorf("invalid ranking.tiers: %w", err)
	}
	return catalog, nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
