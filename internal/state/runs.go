package state

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/ShayCichocki/fission/pkg/models"
)

// RunSummary is one row of run history.
type RunSummary struct {
	// RunID identifies the run.
	RunID string
	// StartedAt is when execution began.
	StartedAt time.Time
	// FinishedAt is when execution settled.
	FinishedAt time.Time
	// Waves is the number of waves in the partition.
	Waves int
	// Atoms is the total atom count.
	Atoms int
	// Succeeded, Failed, Skipped, Aborted are per-status counts.
	Succeeded int
	Failed    int
	Skipped   int
	Aborted   int
}

// SuccessRate returns succeeded atoms over total atoms, or 0 for an empty
// run.
func (s RunSummary) SuccessRate() float64 {
	if s.Atoms == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Atoms)
}

// SaveReport persists a settled execution report: the run row, every atom
// result, and every attempt, in one transaction.
func (db *DB) SaveReport(report *models.ExecutionReport) error {
	if report == nil {
		return fmt.Errorf("state: nil report")
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO runs (id, started_at, finished_at, waves, atoms, succeeded, failed, skipped, aborted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, formatTime(report.StartedAt), formatTime(report.FinishedAt), report.Waves,
			len(report.Results),
			report.Count(models.AtomStatusSucceeded),
			report.Count(models.AtomStatusFailed),
			report.Count(models.AtomStatusSkipped),
			report.Count(models.AtomStatusAborted))
		if err != nil {
			return fmt.Errorf("insert run %s: %w", report.RunID, err)
		}

		for _, res := range report.Results {
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO atom_results (run_id, atom_id, wave, status, error)
				VALUES (?, ?, ?, ?, ?)
			`, report.RunID, res.AtomID, res.Wave, string(res.Status), res.Error)
			if err != nil {
				return fmt.Errorf("insert atom result %s: %w", res.AtomID, err)
			}

			for _, attempt := range res.Attempts {
				_, err := tx.Exec(`
					INSERT OR REPLACE INTO attempts (run_id, atom_id, attempt_number, exploration, started_at, finished_at, outcome, diagnostics)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				`, report.RunID, res.AtomID, attempt.AttemptNumber, attempt.Parameters.Exploration,
					formatTime(attempt.StartedAt), formatTime(attempt.FinishedAt),
					string(attempt.Outcome), attempt.Diagnostics)
				if err != nil {
					return fmt.Errorf("insert attempt %d for atom %s: %w", attempt.AttemptNumber, res.AtomID, err)
				}
			}
		}
		return nil
	})
}

// RecentRuns returns up to limit run summaries, newest first.
func (db *DB) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, waves, atoms, succeeded, failed, skipped, aborted
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var started, finished string
		if err := rows.Scan(&run.RunID, &started, &finished, &run.Waves, &run.Atoms,
			&run.Succeeded, &run.Failed, &run.Skipped, &run.Aborted); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunResults loads every atom result for a run, attempts included, sorted
// by wave then atom ID.
func (db *DB) RunResults(runID string) ([]*models.AtomResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT atom_id, wave, status, COALESCE(error, '')
		FROM atom_results WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query atom results: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.AtomResult)
	for rows.Next() {
		res := &models.AtomResult{}
		var status string
		if err := rows.Scan(&res.AtomID, &res.Wave, &status, &res.Error); err != nil {
			return nil, fmt.Errorf("scan atom result: %w", err)
		}
		res.Status = models.AtomStatus(status)
		byID[res.AtomID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attemptRows, err := db.conn.Query(`
		SELECT atom_id, attempt_number, exploration, started_at, finished_at, outcome, COALESCE(diagnostics, '')
		FROM attempts WHERE run_id = ? ORDER BY atom_id, attempt_number
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer attemptRows.Close()

	for attemptRows.Next() {
		var atomID, started, finished, outcome string
		var attempt models.ExecutionAttempt
		if err := attemptRows.Scan(&atomID, &attempt.AttemptNumber, &attempt.Parameters.Exploration,
			&started, &finished, &outcome, &attempt.Diagnostics); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempt.Outcome = models.AttemptOutcome(outcome)
		if attempt.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse attempt started_at: %w", err)
		}
		if attempt.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("parse attempt finished_at: %w", err)
		}
		if res, ok := byID[atomID]; ok {
			res.Attempts = append(res.Attempts, attempt)
		}
	}
	if err := attemptRows.Err(); err != nil {
		return nil, err
	}

	results := make([]*models.AtomResult, 0, len(byID))
	for _, res := range byID {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Wave != results[j].Wave {
			return results[i].Wave < results[j].Wave
		}
		return results[i].AtomID < results[j].AtomID
	})
	return results, nil
}
