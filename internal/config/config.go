package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDrinkEndpoint = "https://drink.csh.rit.edu"
	defaultRealm         = "drink"
	defaultPort          = "8080"
	defaultGroupID       = "mineral-kiosk"
	defaultNATSSubject   = "drinks.outcomes"
)

// Config is built once at startup and handed to every actor explicitly.
type Config struct {
	Drink      DrinkConfig
	Reader     ReaderConfig
	Gatekeeper GatekeeperConfig
	Timing     TimingConfig
	Server     ServerConfig
	Security   SecurityConfig
	Kafka      KafkaConfig
	NATS       NATSConfig
	Logging    LoggingConfig
}

type DrinkConfig struct {
	Endpoint      string
	Secret        string
	Machines      []int64
	RequireOnline bool
	Timeout       time.Duration
}

type ReaderConfig struct {
	Device string
}

type GatekeeperConfig struct {
	BaseURL string
	Token   string
	Realm   string
}

// TimingConfig holds the workflow clocks. ScanPeriod bounds cancellation latency.
type TimingConfig struct {
	PollInterval time.Duration
	ScanPeriod   time.Duration
	Hold         time.Duration
}

type ServerConfig struct {
	Port string
}

type SecurityConfig struct {
	DisplayJWTSecret string
}

type KafkaConfig struct {
	Brokers       []string
	GroupID       string
	RefreshTopics []string
	OutcomeTopic  string
}

type NATSConfig struct {
	URL            string
	OutcomeSubject string
}

type LoggingConfig struct {
	Directory string
	Level     string
	Format    string
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through the supplied lookup function.
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Drink: DrinkConfig{
			Endpoint: strings.TrimRight(env("DRINK_ENDPOINT", defaultDrinkEndpoint), "/"),
			Secret:   env("MACHINE_SECRET", ""),
		},
		Reader: ReaderConfig{Device: env("READER_DEVICE", "")},
		Gatekeeper: GatekeeperConfig{
			BaseURL: env("GATEKEEPER_URL", ""),
			Token:   env("GATEKEEPER_TOKEN", ""),
			Realm:   env("GATEKEEPER_REALM", defaultRealm),
		},
		Server:   ServerConfig{Port: env("PORT", defaultPort)},
		Security: SecurityConfig{DisplayJWTSecret: env("DISPLAY_JWT_SECRET", "")},
		Kafka: KafkaConfig{
			Brokers:       splitList(env("KAFKA_BROKERS", env("KAFKA_BROKER", ""))),
			GroupID:       env("KAFKA_GROUP_ID", defaultGroupID),
			RefreshTopics: splitList(env("KAFKA_REFRESH_TOPICS", "")),
			OutcomeTopic:  env("KAFKA_OUTCOME_TOPIC", ""),
		},
		NATS: NATSConfig{
			URL:            env("NATS_URL", ""),
			OutcomeSubject: env("NATS_OUTCOME_SUBJECT", defaultNATSSubject),
		},
		Logging: LoggingConfig{
			Directory: env("LOG_DIR", "./logs"),
			Level:     env("LOG_LEVEL", "info"),
			Format:    env("LOG_FORMAT", "text"),
		},
	}

	if cfg.Drink.Secret == "" {
		return nil, fmt.Errorf("MACHINE_SECRET is required")
	}
	if cfg.Reader.Device == "" {
		return nil, fmt.Errorf("READER_DEVICE is required")
	}

	machines, err := parseMachineIDs(getenv("DISPLAYABLE_MACHINES"))
	if err != nil {
		return nil, err
	}
	cfg.Drink.Machines = machines

	if cfg.Drink.RequireOnline, err = parseBool("REQUIRE_ONLINE", env("REQUIRE_ONLINE", "false")); err != nil {
		return nil, err
	}

	durations := []struct {
		key      string
		fallback string
		target   *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.Drink.Timeout},
		{"POLL_INTERVAL", "60s", &cfg.Timing.PollInterval},
		{"SCAN_PERIOD", "250ms", &cfg.Timing.ScanPeriod},
		{"HOLD_DURATION", "5s", &cfg.Timing.Hold},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(env(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.key)
		}
		*d.target = parsed
	}

	return cfg, nil
}

func parseMachineIDs(raw string) ([]int64, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, fmt.Errorf("DISPLAYABLE_MACHINES is required")
	}
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse DISPLAYABLE_MACHINES entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBool(key, raw string) (bool, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
