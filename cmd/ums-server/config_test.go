package main

import (
	"testing"
	"umsassist-backend/internal/leaderboard"

	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Config{Port: "8080"}
	cfg.applyEnv(lookupFrom(map[string]string{
		"PORT":         "9000",
		"UMS_BASE_URL": "http://localhost:1234",
		"MONGO_URI":    "mongodb://localhost:27017",
	}))
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, "http://localhost:1234", cfg.Portal.BaseUrl)
	require.Equal(t, "mongodb://localhost:27017", cfg.Leaderboard.Mongo.Uri)
	require.Equal(t, leaderboard.BackendMongo, cfg.Leaderboard.Backend)
}

func TestApplyEnvKeepsConfiguredBackend(t *testing.T) {
	cfg := Config{Leaderboard: leaderboard.Config{Backend: leaderboard.BackendLibsql}}
	cfg.applyEnv(lookupFrom(map[string]string{
		"DATABASE_URL":      "postgres://localhost/ums",
		"LIBSQL_AUTH_TOKEN": "secret",
	}))
	require.Equal(t, leaderboard.BackendLibsql, cfg.Leaderboard.Backend)
	require.Equal(t, "postgres://localhost/ums", cfg.Leaderboard.PostgresUrl)
	require.Equal(t, "secret", cfg.Leaderboard.LibsqlAuthToken)
}

func TestApplyEnvIgnoresEmpty(t *testing.T) {
	cfg := Config{Port: "8080"}
	cfg.applyEnv(lookupFrom(map[string]string{"PORT": ""}))
	require.Equal(t, "8080", cfg.Port)
	require.Empty(t, cfg.Leaderboard.Backend)
}

func TestOptionConversion(t *testing.T) {
	portal := PortalConfig{TimeoutSeconds: 12, Concurrency: 2}.options()
	require.Equal(t, "12s", portal.Timeout.String())
	require.Equal(t, 2, portal.Concurrency)

	sessions := SessionConfig{TTLMinutes: 5, Capacity: 10}.options()
	require.Equal(t, "5m0s", sessions.TTL.String())
	require.Equal(t, 10, sessions.Capacity)
}
