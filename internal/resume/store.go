// Package resume provides crash-recovery checkpoints for execution runs. A
// checkpoint records the last settled wave and the atoms succeeded so far;
// a resumed run pre-marks those atoms instead of regenerating them.
package resume

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Checkpoint is the crash recovery state for one run.
type Checkpoint struct {
	RunID string
	// UnitHash fingerprints the decomposed unit; a resume against a
	// changed unit must be rejected since atom IDs would not line up.
	UnitHash string
	// LastWave is the highest wave index that fully settled.
	LastWave int
	// CompletedAtoms lists the IDs of every atom succeeded so far.
	CompletedAtoms []string
	Status         string
	StartedAt      time.Time
	UpdatedAt      time.Time
}

// Checkpoint run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// HashUnit fingerprints a source fragment for resume compatibility checks.
func HashUnit(fragment string) string {
	sum := sha256.Sum256([]byte(fragment))
	return hex.EncodeToString(sum[:])
}

// Store manages run checkpoints for crash recovery.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store with the given database path. Parent
// directories are created if missing.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT PRIMARY KEY,
			unit_hash TEXT NOT NULL,
			last_wave INT NOT NULL DEFAULT -1,
			completed_atoms TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			started_at DATETIME,
			updated_at DATETIME
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Begin records a fresh checkpoint for a starting run.
func (s *Store) Begin(runID, unitHash string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		RunID:     runID,
		UnitHash:  unitHash,
		LastWave:  -1,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO checkpoints (run_id, unit_hash, last_wave, completed_atoms, status, started_at, updated_at)
		VALUES (?, ?, ?, '[]', ?, ?, ?)
	`, cp.RunID, cp.UnitHash, cp.LastWave, cp.Status, cp.StartedAt, cp.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert checkpoint: %w", err)
	}
	return cp, nil
}

// MarkWave records that a wave settled with the given cumulative set of
// succeeded atoms.
func (s *Store) MarkWave(runID string, wave int, completedAtoms []string) error {
	encoded, err := json.Marshal(completedAtoms)
	if err != nil {
		return fmt.Errorf("encode completed atoms: %w", err)
	}

	result, err := s.db.Exec(`
		UPDATE checkpoints
		SET last_wave = ?, completed_atoms = ?, updated_at = ?
		WHERE run_id = ?
	`, wave, string(encoded), time.Now(), runID)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint not found: %s", runID)
	}
	return nil
}

// Complete marks a run's checkpoint finished, so it is no longer offered
// for resume.
func (s *Store) Complete(runID string) error {
	_, err := s.db.Exec(`
		UPDATE checkpoints SET status = ?, updated_at = ? WHERE run_id = ?
	`, StatusCompleted, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("complete checkpoint: %w", err)
	}
	return nil
}

// Get retrieves a checkpoint by run ID.
func (s *Store) Get(runID string) (*Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT run_id, unit_hash, last_wave, completed_atoms, status, started_at, updated_at
		FROM checkpoints WHERE run_id = ?
	`, runID)

	cp, err := scanCheckpoint(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	return cp, nil
}

// Resumable returns the checkpoints of interrupted runs matching the unit
// hash, newest first.
func (s *Store) Resumable(unitHash string) ([]*Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT run_id, unit_hash, last_wave, completed_atoms, status, started_at, updated_at
		FROM checkpoints
		WHERE status = ? AND unit_hash = ?
		ORDER BY updated_at DESC
	`, StatusRunning, unitHash)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// Delete removes a checkpoint.
func (s *Store) Delete(runID string) error {
	_, err := s.db.Exec(`DELETE FROM checkpoints WHERE run_id = ?`, runID)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanCheckpoint(scan func(dest ...any) error) (*Checkpoint, error) {
	var cp Checkpoint
	var encoded string
	if err := scan(&cp.RunID, &cp.UnitHash, &cp.LastWave, &encoded, &cp.Status, &cp.StartedAt, &cp.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &cp.CompletedAtoms); err != nil {
		return nil, fmt.Errorf("decode completed atoms: %w", err)
	}
	return &cp, nil
}
