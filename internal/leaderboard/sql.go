package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"umsassist-backend/pkg/migrations"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

//go:embed schema.sql
var Schema string

// sqlStore serves both sqlite and libsql, they share the dialect.
type sqlStore struct {
	db *sql.DB
}

func OpenSqlite(path string) (Store, error) {
	db, err := migrations.OpenAndMigrateDB(Schema, path)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	return sqlStore{db: db}, nil
}

func OpenLibsql(dbUrl, authToken string) (Store, error) {
	if dbUrl == "" {
		return nil, fmt.Errorf("open libsql: a url was not specified")
	}
	parsed, err := url.Parse(dbUrl)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	if authToken != "" {
		query := parsed.Query()
		query.Set("authToken", authToken)
		parsed.RawQuery = query.Encode()
	}

	db, err := sql.Open("libsql", parsed.String())
	if err != nil {
		return nil, unavailable("open libsql", err)
	}
	err = migrations.Migrate(db, Schema)
	if err != nil {
		db.Close()
		return nil, unavailable("open libsql", err)
	}
	return sqlStore{db: db}, nil
}

func (s sqlStore) Upsert(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into leaderboard(roll_no, name, percentage, last_updated)
		values (?, ?, ?, ?)
		on conflict(roll_no) do update set
			name = excluded.name,
			percentage = excluded.percentage,
			last_updated = excluded.last_updated`,
		entry.RollNo,
		entry.Name,
		entry.Percentage,
		entry.LastUpdated.UTC(),
	)
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (s sqlStore) Top(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select name, percentage, roll_no from leaderboard order by percentage desc limit ?",
		n,
	)
	if err != nil {
		return nil, unavailable("top", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		err = rows.Scan(&entry.Name, &entry.Percentage, &entry.RollNo)
		if err != nil {
			return nil, unavailable("top", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("top", err)
	}
	return entries, nil
}

func (s sqlStore) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s sqlStore) Close() error {
	return s.db.Close()
}
