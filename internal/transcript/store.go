package transcript

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/sentence"
)

// StoredRecord is one persisted transcript sentence.
type StoredRecord struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Position    int       `json:"position"`
	Recognized  string    `json:"recognized"`
	Corrected   string    `json:"corrected"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists session transcripts in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the transcript database.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sessionId TEXT NOT NULL,
			position INTEGER NOT NULL,
			recognized TEXT NOT NULL,
			corrected TEXT NOT NULL,
			translation TEXT NOT NULL,
			createdAt REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_session ON records(sessionId, position);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists one finalized sentence at the next position for a session.
func (s *Store) Append(sessionID string, position int, record sentence.Record) error {
	_, err := s.db.Exec(`
		INSERT INTO records (sessionId, position, recognized, corrected, translation, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, position, record.Recognized, record.Corrected, record.Translation,
		float64(time.Now().UnixNano())/1e9)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// RecordsForSession returns all persisted sentences for a session in order.
func (s *Store) RecordsForSession(sessionID string) ([]StoredRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, sessionId, position, recognized, corrected, translation, createdAt
		FROM records
		WHERE sessionId = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var r StoredRecord
		var createdAt float64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Position, &r.Recognized,
			&r.Corrected, &r.Translation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.CreatedAt = timeFromUnix(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Sessions returns the distinct session IDs present, most recent first.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT sessionId
		FROM records
		GROUP BY sessionId
		ORDER BY MAX(createdAt) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
