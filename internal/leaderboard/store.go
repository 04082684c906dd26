package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps every failure of the underlying database.
var ErrUnavailable = errors.New("leaderboard: store unavailable")

// DefaultLimit is the number of entries shown on the leaderboard.
const DefaultLimit = 50

const (
	BackendSqlite   = "sqlite"
	BackendLibsql   = "libsql"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

type Entry struct {
	RollNo     string
	Name       string
	Percentage float64
	// LastUpdated is only set on writes, Top does not read it back.
	LastUpdated time.Time
}

// Store keeps one entry per roll number.
type Store interface {
	// Upsert inserts the entry or replaces the entry with the same roll number.
	Upsert(ctx context.Context, entry Entry) error
	// Top returns at most n entries by descending percentage, ties in no particular order.
	Top(ctx context.Context, n int) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

type MongoConfig struct {
	Uri        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

type Config struct {
	// Backend is one of sqlite, libsql, mongo or postgres, defaults to sqlite.
	Backend string `json:"backend"`
	// File is the sqlite database path.
	File string `json:"file"`
	// LibsqlUrl is a libsql:// or https:// url of a remote database.
	LibsqlUrl       string      `json:"libsql_url"`
	LibsqlAuthToken string      `json:"libsql_auth_token"`
	Mongo           MongoConfig `json:"mongo"`
	PostgresUrl     string      `json:"postgres_url"`
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendSqlite
	}
	if c.File == "" {
		c.File = "data/leaderboard.db"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "ums_db"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "users"
	}
	return c
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Open connects to the configured backend and makes sure the schema exists.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case BackendSqlite:
		return OpenSqlite(cfg.File)
	case BackendLibsql:
		return OpenLibsql(cfg.LibsqlUrl, cfg.LibsqlAuthToken)
	case BackendMongo:
		return OpenMongo(ctx, cfg.Mongo)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresUrl)
	}
	return nil, fmt.Errorf("unknown leaderboard backend %q", cfg.Backend)
}

type unavailableStore struct {
	cause error
}

// Unavailable is a store where every call fails with ErrUnavailable, it lets
// the server start without a database.
func Unavailable(cause error) Store {
	return unavailableStore{cause: cause}
}

func (s unavailableStore) err() error {
	return fmt.Errorf("%w: %w", ErrUnavailable, s.cause)
}

func (s unavailableStore) Upsert(context.Context, Entry) error {
	return s.err()
}

func (s unavailableStore) Top(context.Context, int) ([]Entry, error) {
	return nil, s.err()
}

func (s unavailableStore) Ping(context.Context) error {
	return s.err()
}

func (s unavailableStore) Close() error {
	return nil
}
