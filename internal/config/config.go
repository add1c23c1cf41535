package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ml-governance-service/internal/core/domain"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Webhook    WebhookConfig
	Quality    QualityConfig
	Drift      DriftConfig
	Governance GovernanceConfig
	Logger     LoggerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type WebhookConfig struct {
	AdminURL string
	Timeout  time.Duration
}

type QualityConfig struct {
	CompletenessThreshold float64
	KAnonymity            int
	RequiredColumns       []string
	Ranges                map[string]domain.Range
}

type DriftConfig struct {
	Alpha        float64
	PSIThreshold float64
	Bins         int
	MinSamples   int
	Interval     time.Duration
}

type GovernanceConfig struct {
	VolumeThreshold  int64
	ScheduleInterval time.Duration
	PromotionFactor  float64
	TickInterval     time.Duration
	Models           []string
}

type LoggerConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "governance")
	v.SetDefault("DB_PASSWORD", "governance")
	v.SetDefault("DB_NAME", "governance")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ADMIN_WEBHOOK_URL", "")
	v.SetDefault("ADMIN_WEBHOOK_TIMEOUT", "10s")

	v.SetDefault("QUALITY_COMPLETENESS_THRESHOLD", 0.70)
	v.SetDefault("QUALITY_K_ANONYMITY", 5)
	v.SetDefault("QUALITY_REQUIRED_COLUMNS", "patient_id,visit_date,mmse")
	v.SetDefault("QUALITY_RANGES", "mmse=0:30,moca=0:30,cdr=0:3,age=0:120")

	v.SetDefault("DRIFT_ALPHA", 0.05)
	v.SetDefault("DRIFT_PSI_THRESHOLD", 0.2)
	v.SetDefault("DRIFT_BINS", 10)
	v.SetDefault("DRIFT_MIN_SAMPLES", 30)
	v.SetDefault("DRIFT_INTERVAL", "5m")

	v.SetDefault("GOVERNANCE_VOLUME_THRESHOLD", 1000)
	v.SetDefault("GOVERNANCE_SCHEDULE_INTERVAL", "168h")
	v.SetDefault("GOVERNANCE_PROMOTION_FACTOR", 1.05)
	v.SetDefault("GOVERNANCE_TICK_INTERVAL", "1m")
	v.SetDefault("GOVERNANCE_MODELS", "")

	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	// Env
	v.AutomaticEnv()

	ranges, err := parseRanges(v.GetString("QUALITY_RANGES"))
	if err != nil {
		return nil, fmt.Errorf("QUALITY_RANGES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durationOr(v, "DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Webhook: WebhookConfig{
			AdminURL: v.GetString("ADMIN_WEBHOOK_URL"),
			Timeout:  durationOr(v, "ADMIN_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Quality: QualityConfig{
			CompletenessThreshold: v.GetFloat64("QUALITY_COMPLETENESS_THRESHOLD"),
			KAnonymity:            v.GetInt("QUALITY_K_ANONYMITY"),
			RequiredColumns:       splitList(v.GetString("QUALITY_REQUIRED_COLUMNS")),
			Ranges:                ranges,
		},
		Drift: DriftConfig{
			Alpha:        v.GetFloat64("DRIFT_ALPHA"),
			PSIThreshold: v.GetFloat64("DRIFT_PSI_THRESHOLD"),
			Bins:         v.GetInt("DRIFT_BINS"),
			MinSamples:   v.GetInt("DRIFT_MIN_SAMPLES"),
			Interval:     durationOr(v, "DRIFT_INTERVAL", 5*time.Minute),
		},
		Governance: GovernanceConfig{
			VolumeThreshold:  v.GetInt64("GOVERNANCE_VOLUME_THRESHOLD"),
			ScheduleInterval: durationOr(v, "GOVERNANCE_SCHEDULE_INTERVAL", 7*24*time.Hour),
			PromotionFactor:  v.GetFloat64("GOVERNANCE_PROMOTION_FACTOR"),
			TickInterval:     durationOr(v, "GOVERNANCE_TICK_INTERVAL", time.Minute),
			Models:           splitList(v.GetString("GOVERNANCE_MODELS")),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// parseRanges reads a per-field bounds table in "field=min:max" form,
// comma-separated, e.g. "mmse=0:30,age=0:120".
func parseRanges(raw string) (map[string]domain.Range, error) {
	ranges := make(map[string]domain.Range)
	for _, entry := range splitList(raw) {
		field, bounds, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not field=min:max", entry)
		}
		lo, hi, ok := strings.Cut(bounds, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q is not field=min:max", entry)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		ranges[strings.TrimSpace(field)] = domain.Range{Min: min, Max: max}
	}
	return ranges, nil
}
