package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/trustmesh/backend/internal/engine"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
	// RateLimitPerMinute caps each caller's request rate. Zero disables it.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type EngineConfig struct {
	MinStake             uint64 `yaml:"min_stake"`
	UnstakeCooldownHours int    `yaml:"unstake_cooldown_hours"`
	DefaultExpiryDays    int    `yaml:"default_expiry_days"`
	SlashPercent         uint64 `yaml:"slash_percent"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MonitoringConfig struct {
	EnableMetrics bool `yaml:"enable_metrics"`
}

// Default returns the configuration used when no file is supplied: protocol
// defaults, port 8080, metrics on, no external stores.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Engine: EngineConfig{
			MinStake:             1,
			UnstakeCooldownHours: 24,
			DefaultExpiryDays:    7,
			SlashPercent:         10,
		},
		Monitoring: MonitoringConfig{EnableMetrics: true},
	}
}

// Load reads a YAML configuration file. Fields left unset fall back to the
// defaults from Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EngineParams converts the engine section to protocol parameters.
func (c *Config) EngineParams() engine.Params {
	p := engine.DefaultParams()
	if c.Engine.MinStake > 0 {
		p.MinStake = c.Engine.MinStake
	}
	if c.Engine.UnstakeCooldownHours > 0 {
		p.UnstakeCooldown = time.Duration(c.Engine.UnstakeCooldownHours) * time.Hour
	}
	if c.Engine.DefaultExpiryDays > 0 {
		p.DefaultDealExpiry = time.Duration(c.Engine.DefaultExpiryDays) * 24 * time.Hour
	}
	if c.Engine.SlashPercent > 0 {
		p.SlashPercent = c.Engine.SlashPercent
	}
	return p
}
