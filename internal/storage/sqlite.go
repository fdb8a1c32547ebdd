package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding entries, reminders, and user context.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "murmur.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	// Required for the entry -> reminder cascade delete.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for components layered on the same
// database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Entries ---

// CreateEntry persists a classified entry. An empty embedding is stored as
// NULL; the entry is then invisible to similarity search.
func (s *Store) CreateEntry(e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var blob any
	if len(e.Embedding) > 0 {
		blob = encodeFloat32s(e.Embedding)
	}

	_, err := s.db.Exec(`
		INSERT INTO entries (id, user_id, content, intent, category, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Content, e.Intent, e.Category, blob, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetEntry returns the entry with the given id.
func (s *Store) GetEntry(id string) (Entry, error) {
	var e Entry
	var blob []byte
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, content, intent, category, embedding, created_at
		FROM entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.UserID, &e.Content, &e.Intent, &e.Category, &blob, &createdAt)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if len(blob) > 0 {
		if e.Embedding, err = decodeFloat32s(blob); err != nil {
			return Entry{}, fmt.Errorf("decoding embedding for %s: %w", e.ID, err)
		}
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

// ListEntries returns a user's entries newest first, optionally filtered by
// intent. Embeddings are not loaded.
func (s *Store) ListEntries(userID, intent string, limit, offset int) ([]Entry, error) {
	query := `SELECT id, user_id, content, intent, category, created_at
		FROM entries WHERE user_id = ?`
	args := []any{userID}
	if intent != "" {
		query += " AND intent = ?"
		args = append(args, intent)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Content, &e.Intent, &e.Category, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// DeleteEntry removes an entry; its reminders cascade.
func (s *Store) DeleteEntry(id string) error {
	res, err := s.db.Exec("DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Reminders ---

// CreateReminder attaches a reminder to an existing entry.
func (s *Store) CreateReminder(r Reminder) error {
	status := r.Status
	if status == "" {
		status = ReminderPending
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO reminders (id, entry_id, due_date, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.EntryID, r.DueDate.UTC().Format(time.RFC3339), status, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListReminders returns a user's reminders ordered by due date, optionally
// filtered by status.
func (s *Store) ListReminders(userID, status string, limit int) ([]Reminder, error) {
	query := `SELECT r.id, r.entry_id, r.due_date, r.status, r.created_at
		FROM reminders r JOIN entries e ON e.id = r.entry_id
		WHERE e.user_id = ?`
	args := []any{userID}
	if status != "" {
		query += " AND r.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY r.due_date ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Reminder
	for rows.Next() {
		var r Reminder
		var dueDate, createdAt string
		if err := rows.Scan(&r.ID, &r.EntryID, &dueDate, &r.Status, &createdAt); err != nil {
			return nil, err
		}
		if r.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
			return nil, fmt.Errorf("parsing due_date: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// UpdateReminderStatus transitions a reminder to the given status.
func (s *Store) UpdateReminderStatus(id, status string) error {
	res, err := s.db.Exec("UPDATE reminders SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- User context ---

// SetContextValue inserts or updates a user-scoped context value.
func (s *Store) SetContextValue(userID, key, value, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_context (user_id, key, value, description, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, description = excluded.description, updated_at = excluded.updated_at`,
		userID, key, value, description, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetContextValue returns one context value by key for the given user.
func (s *Store) GetContextValue(userID, key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM user_context WHERE user_id = ? AND key = ?", userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// AllContextValues returns every context key/value for the given user as the
// flat mapping the classifier consumes.
func (s *Store) AllContextValues(userID string) (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM user_context WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

// DeleteContextValue removes a context value by key for the given user.
func (s *Store) DeleteContextValue(userID, key string) error {
	res, err := s.db.Exec("DELETE FROM user_context WHERE user_id = ? AND key = ?", userID, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
