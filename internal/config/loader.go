package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Delivery channels for reminders.
const (
	ChannelSlack = "slack"
	ChannelLog   = "log"
)

// Config captures environment driven configuration values for the webot service.
type Config struct {
	HTTPPort        int
	SQLitePath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DeliveryChannel is ChannelSlack or ChannelLog.
	DeliveryChannel string
	SlackBotToken   string

	DispatchInterval  time.Duration
	DispatchBatchSize int
	DeliveryTimeout   time.Duration
	// DeliveryRate is reminders per second; negative disables pacing.
	DeliveryRate  float64
	ClaimLease    time.Duration
	Retention     time.Duration
	PurgeSchedule string

	ZoneCacheSize int
}

// LoadDotEnv exports the variables of the given .env files that are not set
// already. Files that do not exist are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	e := env{getenv: getenv}
	cfg := Config{
		HTTPPort:          e.positiveInt("WEBOT_HTTP_PORT", 8080),
		SQLitePath:        e.string("WEBOT_SQLITE_DSN", "webot.db"),
		LogLevel:          e.string("WEBOT_LOG_LEVEL", "info"),
		LogFormat:         e.string("WEBOT_LOG_FORMAT", "json"),
		ShutdownTimeout:   e.duration("WEBOT_SHUTDOWN_TIMEOUT", 15*time.Second),
		SlackBotToken:     e.string("WEBOT_SLACK_BOT_TOKEN", ""),
		DispatchInterval:  e.duration("WEBOT_DISPATCH_INTERVAL", 5*time.Minute),
		DispatchBatchSize: e.positiveInt("WEBOT_DISPATCH_BATCH_SIZE", 50),
		DeliveryTimeout:   e.duration("WEBOT_DELIVERY_TIMEOUT", 10*time.Second),
		DeliveryRate:      e.float("WEBOT_DELIVERY_RATE", 5),
		ClaimLease:        e.duration("WEBOT_CLAIM_LEASE", 10*time.Minute),
		Retention:         e.duration("WEBOT_RETENTION", 30*24*time.Hour),
		PurgeSchedule:     e.string("WEBOT_PURGE_SCHEDULE", "@daily"),
		ZoneCacheSize:     e.positiveInt("WEBOT_ZONE_CACHE_SIZE", 256),
	}

	if _, err := cron.ParseStandard(cfg.PurgeSchedule); err != nil {
		e.invalid = append(e.invalid, "WEBOT_PURGE_SCHEDULE")
	}

	defaultChannel := ChannelLog
	if cfg.SlackBotToken != "" {
		defaultChannel = ChannelSlack
	}
	cfg.DeliveryChannel = strings.ToLower(e.string("WEBOT_DELIVERY_CHANNEL", defaultChannel))
	switch cfg.DeliveryChannel {
	case ChannelLog:
	case ChannelSlack:
		if cfg.SlackBotToken == "" {
			e.missing = append(e.missing, "WEBOT_SLACK_BOT_TOKEN")
		}
	default:
		e.invalid = append(e.invalid, "WEBOT_DELIVERY_CHANNEL")
	}

	if len(e.missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(e.missing, ", "))
	}
	if len(e.invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(e.invalid, ", "))
	}
	return cfg, nil
}

type env struct {
	getenv  func(string) string
	missing []string
	invalid []string
}

func (e *env) string(key, fallback string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (e *env) positiveInt(key string, fallback int) int {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return n
}

func (e *env) float(key string, fallback float64) float64 {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return f
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return d
}
