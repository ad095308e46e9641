package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"argus/core"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRuleStore persists rule definitions in a single SQLite database.
// Scalar columns carry the identity fields used for lookups; the structured
// parts of a definition (group-by paths, sequence steps, output) are stored
// as JSON columns, so schema changes in the definition shape do not require
// migrations.
type SQLiteRuleStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteRuleStore opens (creating if needed) the database at dbPath and
// runs schema migration. WAL mode keeps readers unblocked during writes; the
// busy timeout absorbs short writer contention instead of surfacing
// SQLITE_BUSY to callers.
func NewSQLiteRuleStore(dbPath string, logger *zap.SugaredLogger) (*SQLiteRuleStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// modernc.org/sqlite serializes at the driver level; a single connection
	// avoids table-lock churn between pooled connections.
	db.SetMaxOpenConns(1)

	if err := configureConnection(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &SQLiteRuleStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Infow("SQLite rule store ready", "path", dbPath)
	return store, nil
}

func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report "memory" journal mode; only file-backed
	// databases must verify WAL took effect.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (journal_mode=%s)", journalMode)
	}
	return nil
}

func (s *SQLiteRuleStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sequence_rules (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			group_by       TEXT NOT NULL,
			within_seconds REAL NOT NULL,
			sequence       TEXT NOT NULL,
			output         TEXT NOT NULL,
			created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// ListRules returns all stored definitions ordered by ID.
func (s *SQLiteRuleStore) ListRules() ([]*core.RuleDefinition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, group_by, within_seconds, sequence, output
		FROM sequence_rules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var defs []*core.RuleDefinition
	for rows.Next() {
		def, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return defs, nil
}

// GetRule returns the definition with the given ID.
func (s *SQLiteRuleStore) GetRule(id string) (*core.RuleDefinition, error) {
	row := s.db.QueryRow(`
		SELECT id, name, group_by, within_seconds, sequence, output
		FROM sequence_rules
		WHERE id = ?
	`, id)
	def, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return def, err
}

// CreateRule inserts a new definition, failing on an existing ID.
func (s *SQLiteRuleStore) CreateRule(def *core.RuleDefinition) error {
	groupBy, sequence, output, err := encodeRule(def)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sequence_rules (id, name, group_by, within_seconds, sequence, output)
		VALUES (?, ?, ?, ?, ?, ?)
	`, def.ID, def.Name, groupBy, def.WithinSeconds, sequence, output)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, def.ID)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// UpdateRule replaces the rule stored under id. An ID change is performed as
// delete-plus-insert inside one transaction so a conflicting new ID rolls the
// whole update back.
func (s *SQLiteRuleStore) UpdateRule(id string, def *core.RuleDefinition) error {
	groupBy, sequence, output, err := encodeRule(def)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if def.ID == id {
		res, err := tx.Exec(`
			UPDATE sequence_rules
			SET name = ?, group_by = ?, within_seconds = ?, sequence = ?, output = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, def.Name, groupBy, def.WithinSeconds, sequence, output, id)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		return tx.Commit()
	}

	res, err := tx.Exec(`DELETE FROM sequence_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove rule under old id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if _, err := tx.Exec(`
		INSERT INTO sequence_rules (id, name, group_by, within_seconds, sequence, output)
		VALUES (?, ?, ?, ?, ?, ?)
	`, def.ID, def.Name, groupBy, def.WithinSeconds, sequence, output); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, def.ID)
		}
		return fmt.Errorf("failed to insert rule under new id: %w", err)
	}
	return tx.Commit()
}

// DeleteRule removes the rule with the given ID.
func (s *SQLiteRuleStore) DeleteRule(id string) error {
	res, err := s.db.Exec(`DELETE FROM sequence_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteRuleStore) Close() error {
	return s.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*core.RuleDefinition, error) {
	var def core.RuleDefinition
	var groupBy, sequence, output string
	if err := row.Scan(&def.ID, &def.Name, &groupBy, &def.WithinSeconds, &sequence, &output); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule row: %w", err)
	}
	if err := json.Unmarshal([]byte(groupBy), &def.By); err != nil {
		return nil, fmt.Errorf("failed to decode group_by for rule %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(sequence), &def.Sequence); err != nil {
		return nil, fmt.Errorf("failed to decode sequence for rule %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(output), &def.Output); err != nil {
		return nil, fmt.Errorf("failed to decode output for rule %s: %w", def.ID, err)
	}
	return &def, nil
}

func encodeRule(def *core.RuleDefinition) (groupBy, sequence, output string, err error) {
	by := def.By
	if by == nil {
		by = []string{}
	}
	groupByBytes, err := json.Marshal(by)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode group_by: %w", err)
	}
	sequenceBytes, err := json.Marshal(def.Sequence)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode sequence: %w", err)
	}
	outputBytes, err := json.Marshal(def.Output)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode output: %w", err)
	}
	return string(groupByBytes), string(sequenceBytes), string(outputBytes), nil
}

// isUniqueViolation recognizes primary key conflicts without depending on
// driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
