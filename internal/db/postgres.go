package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            doc JSONB NOT NULL,
            version BIGINT NOT NULL DEFAULT 1,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            participant_ids TEXT[] NOT NULL DEFAULT '{}',
            call_participant_ids TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chats_participants ON chats USING GIN (participant_ids);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_call_participants ON chats USING GIN (call_participant_ids);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_last_activity ON chats (last_activity DESC);`,
		`CREATE TABLE IF NOT EXISTS user_friends (
            user_id TEXT NOT NULL,
            friend_id TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(user_id, friend_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
