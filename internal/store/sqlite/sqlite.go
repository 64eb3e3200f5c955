package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-client/internal/store"
)

// SQLiteStore implements store.Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	token    TEXT NOT NULL,
	username TEXT NOT NULL,
	saved_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	profile_pic TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL
);
`

const settingLastRoom = "last_room"

// New opens (or creates) the state database at dbPath and applies the
// schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCredentials replaces the cached login state.
func (s *SQLiteStore) SaveCredentials(ctx context.Context, creds store.Credentials) error {
	query := `
		INSERT INTO credentials (id, token, username, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			token = excluded.token,
			username = excluded.username,
			saved_at = excluded.saved_at
	`
	savedAt := creds.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, query, creds.Token, creds.Username, savedAt); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Credentials returns the cached login state, or nil when absent.
func (s *SQLiteStore) Credentials(ctx context.Context) (*store.Credentials, error) {
	query := `SELECT token, username, saved_at FROM credentials WHERE id = 1`

	var creds store.Credentials
	err := s.db.QueryRowContext(ctx, query).Scan(&creds.Token, &creds.Username, &creds.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return &creds, nil
}

// ClearCredentials forgets the cached login state.
func (s *SQLiteStore) ClearCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// SetLastRoom remembers the most recently active room.
func (s *SQLiteStore) SetLastRoom(ctx context.Context, name string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, settingLastRoom, name); err != nil {
		return fmt.Errorf("set last room: %w", err)
	}
	return nil
}

// LastRoom returns the most recently active room, or "" when unset.
func (s *SQLiteStore) LastRoom(ctx context.Context) (string, error) {
	query := `SELECT value FROM settings WHERE key = ?`

	var name string
	err := s.db.QueryRowContext(ctx, query, settingLastRoom).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last room: %w", err)
	}
	return name, nil
}

// ReplaceRooms overwrites the cached joined-room listing, preserving the
// given order.
func (s *SQLiteStore) ReplaceRooms(ctx context.Context, rooms []store.Room) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace rooms: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms`); err != nil {
		return fmt.Errorf("clear rooms: %w", err)
	}

	query := `INSERT INTO rooms (id, name, profile_pic, position) VALUES (?, ?, ?, ?)`
	for i, room := range rooms {
		if _, err := tx.ExecContext(ctx, query, room.ID, room.Name, room.ProfilePic, i); err != nil {
			return fmt.Errorf("insert room %s: %w", room.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace rooms: %w", err)
	}
	return nil
}

// Rooms returns the cached joined-room listing in stored order.
func (s *SQLiteStore) Rooms(ctx context.Context) ([]store.Room, error) {
	query := `SELECT id, name, profile_pic, position FROM rooms ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.ProfilePic, &room.Position); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}
