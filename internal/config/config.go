// Package config loads guard tuning and deployment settings.
//
// Settings come from three layers, later ones winning:
//  1. defaults in the embedded CUE schema
//  2. an optional CUE (or JSON) file, validated against the schema
//  3. ORDERS_* environment variables, optionally loaded from a .env file
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"

	"github.com/smvora4u/restaurant-management/internal/guard"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by ApplyEnv.
const (
	EnvDB          = "ORDERS_DB"
	EnvRedisURL    = "ORDERS_REDIS_URL"
	EnvMetricsAddr = "ORDERS_METRICS_ADDR"
	EnvKafka       = "ORDERS_KAFKA_BROKERS"
	EnvKafkaTopic  = "ORDERS_KAFKA_TOPIC"
	EnvKafkaGroup  = "ORDERS_KAFKA_GROUP"
	EnvStatusTopic = "ORDERS_STATUS_TOPIC"
)

// Config is the fully resolved configuration.
type Config struct {
	Guard      guard.Config
	Deployment Deployment
}

// Deployment names the external systems the guard talks to.
type Deployment struct {
	DBPath      string
	RedisURL    string
	MetricsAddr string
	Kafka       Kafka
}

// Kafka selects the notification topic and, optionally, the topic status
// changes are announced on.
type Kafka struct {
	Brokers     []string
	Topic       string
	GroupID     string
	StatusTopic string
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// rawConfig mirrors #Config field for field.
type rawConfig struct {
	Guard struct {
		Window               string `json:"window"`
		AutoLimit            int    `json:"auto_limit"`
		UserLimit            int    `json:"user_limit"`
		EmergencyLimit       int    `json:"emergency_limit"`
		HaltCooldown         string `json:"halt_cooldown"`
		Debounce             string `json:"debounce"`
		SettleDelay          string `json:"settle_delay"`
		CompletedSettleDelay string `json:"completed_settle_delay"`
		PushTimeout          string `json:"push_timeout"`
	} `json:"guard"`
	Deployment struct {
		DB          string `json:"db"`
		RedisURL    string `json:"redis_url"`
		MetricsAddr string `json:"metrics_addr"`
		Kafka       struct {
			Brokers     []string `json:"brokers"`
			Topic       string   `json:"topic"`
			GroupID     string   `json:"group_id"`
			StatusTopic string   `json:"status_topic"`
		} `json:"kafka"`
	} `json:"deployment"`
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Parse(nil, "")
}

// Load reads and validates the file at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates src against the schema and resolves defaults. filename
// is used in error messages only.
func Parse(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	if len(src) == 0 {
		src = []byte("{}")
	}
	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", filename, err)
	}

	var raw rawConfig
	if err := v.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", filename, err)
	}
	return resolve(raw)
}

func resolve(raw rawConfig) (*Config, error) {
	var errs []error
	duration := func(name, s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("guard.%s: %w", name, err))
		}
		return d
	}

	g := raw.Guard
	cfg := &Config{
		Guard: guard.Config{
			Window:               duration("window", g.Window),
			AutoLimit:            g.AutoLimit,
			UserLimit:            g.UserLimit,
			EmergencyLimit:       g.EmergencyLimit,
			HaltCooldown:         duration("halt_cooldown", g.HaltCooldown),
			Debounce:             duration("debounce", g.Debounce),
			SettleDelay:          duration("settle_delay", g.SettleDelay),
			CompletedSettleDelay: duration("completed_settle_delay", g.CompletedSettleDelay),
			PushTimeout:          duration("push_timeout", g.PushTimeout),
		},
		Deployment: Deployment{
			DBPath:      raw.Deployment.DB,
			RedisURL:    raw.Deployment.RedisURL,
			MetricsAddr: raw.Deployment.MetricsAddr,
			Kafka: Kafka{
				Brokers:     raw.Deployment.Kafka.Brokers,
				Topic:       raw.Deployment.Kafka.Topic,
				GroupID:     raw.Deployment.Kafka.GroupID,
				StatusTopic: raw.Deployment.Kafka.StatusTopic,
			},
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Guard.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored
// when none were named explicitly.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides deployment settings from ORDERS_* variables.
func (c *Config) ApplyEnv() {
	if v, ok := lookup(EnvDB); ok {
		c.Deployment.DBPath = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.Deployment.RedisURL = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.Deployment.MetricsAddr = v
	}
	if v, ok := lookup(EnvKafka); ok {
		c.Deployment.Kafka.Brokers = splitCSV(v)
	}
	if v, ok := lookup(EnvKafkaTopic); ok {
		c.Deployment.Kafka.Topic = v
	}
	if v, ok := lookup(EnvKafkaGroup); ok {
		c.Deployment.Kafka.GroupID = v
	}
	if v, ok := lookup(EnvStatusTopic); ok {
		c.Deployment.Kafka.StatusTopic = v
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitCSV(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
