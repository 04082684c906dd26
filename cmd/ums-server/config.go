package main

import (
	"os"
	"time"
	"umsassist-backend/internal/leaderboard"
	"umsassist-backend/internal/scrapers/ums"
	"umsassist-backend/internal/session"
	"umsassist-backend/pkg/configutil"

	"github.com/joho/godotenv"
)

type PortalConfig struct {
	BaseUrl           string  `json:"base_url"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	Concurrency       int     `json:"concurrency"`
}

type SessionConfig struct {
	TTLMinutes int `json:"ttl_minutes"`
	Capacity   int `json:"capacity"`
}

type Config struct {
	Port           string             `json:"port"`
	AllowedOrigins []string           `json:"allowed_origins"`
	Portal         PortalConfig       `json:"portal"`
	Sessions       SessionConfig      `json:"sessions"`
	Leaderboard    leaderboard.Config `json:"leaderboard"`
}

func (c PortalConfig) options() ums.Options {
	return ums.Options{
		BaseUrl:           c.BaseUrl,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
		CloudflareBypass:  c.CloudflareBypass,
		Concurrency:       c.Concurrency,
	}
}

func (c SessionConfig) options() session.Options {
	return session.Options{
		TTL:      time.Duration(c.TTLMinutes) * time.Minute,
		Capacity: c.Capacity,
	}
}

// LoadConfig reads config.json5 when it exists and then applies the
// environment, which always wins.
func LoadConfig() (Config, error) {
	// .env is optional, variables already set in the environment are kept
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	cfg.applyEnv(os.LookupEnv)

	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("UMS_BASE_URL"); ok && v != "" {
		c.Portal.BaseUrl = v
	}
	if v, ok := lookup("MONGO_URI"); ok && v != "" {
		c.Leaderboard.Mongo.Uri = v
		if c.Leaderboard.Backend == "" {
			c.Leaderboard.Backend = leaderboard.BackendMongo
		}
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Leaderboard.PostgresUrl = v
		if c.Leaderboard.Backend == "" {
			c.Leaderboard.Backend = leaderboard.BackendPostgres
		}
	}
	if v, ok := lookup("LIBSQL_AUTH_TOKEN"); ok && v != "" {
		c.Leaderboard.LibsqlAuthToken = v
	}
}
