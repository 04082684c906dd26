package leaderboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS leaderboard (
		roll_no TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		percentage DOUBLE PRECISION NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS leaderboard_percentage ON leaderboard(percentage DESC);
`

type postgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseUrl string) (Store, error) {
	if databaseUrl == "" {
		return nil, fmt.Errorf("open postgres: a database url was not specified")
	}

	pool, err := pgxpool.New(ctx, databaseUrl)
	if err != nil {
		return nil, unavailable("open postgres", err)
	}
	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, unavailable("open postgres", err)
	}
	_, err = pool.Exec(ctx, postgresSchema)
	if err != nil {
		pool.Close()
		return nil, unavailable("migrate postgres", err)
	}

	return postgresStore{pool: pool}, nil
}

func (s postgresStore) Upsert(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO leaderboard (roll_no, name, percentage, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (roll_no) DO UPDATE SET
			name = EXCLUDED.name,
			percentage = EXCLUDED.percentage,
			last_updated = EXCLUDED.last_updated`,
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

func (s postgresStore) Top(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.pool.Query(
		ctx,
		"SELECT name, percentage, roll_no FROM leaderboard ORDER BY percentage DESC LIMIT $1",
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

func (s postgresStore) Ping(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s postgresStore) Close() error {
	s.pool.Close()
	return nil
}
