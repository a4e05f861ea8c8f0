// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists finished analysis reports to a local SQLite
// database so past runs can be listed and re-exported. Only reports are
// stored; submitted documents never touch disk.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/novelty-engine/pkg/types"
)

const dbFile = "novelty.db"

// Store manages the report archive SQLite database.
type Store struct {
	db *sql.DB
}

// Entry is one archived report row as returned by List.
type Entry struct {
	ID           int64
	Title        string
	OverallScore float64
	RiskCategory types.RiskCategory
	DegradedRun  bool
	ProcessedAt  time.Time
}

// NewStore opens or creates the archive database at dir/novelty.db,
// creating the schema if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		overall_score REAL NOT NULL,
		risk_category TEXT NOT NULL,
		degraded INTEGER NOT NULL,
		candidates_analyzed INTEGER NOT NULL,
		processed_at TEXT NOT NULL,
		report_json TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Save archives one report and returns its row ID.
func (s *Store) Save(report *types.AnalysisReport) (int64, error) {
	blob, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("marshaling report: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO reports (title, overall_score, risk_category, degraded, candidates_analyzed, processed_at, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.Title,
		report.OverallScore,
		string(report.RiskCategory),
		report.DegradedRun,
		report.CandidatesAnalyzed,
		report.ProcessedAt.UTC().Format(time.RFC3339),
		string(blob),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting report: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent archive entries, newest first, up to limit.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, title, overall_score, risk_category, degraded, processed_at
		 FROM reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var risk, processedAt string
		if err := rows.Scan(&e.ID, &e.Title, &e.OverallScore, &risk, &e.DegradedRun, &processedAt); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		e.RiskCategory = types.RiskCategory(risk)
		if t, parseErr := time.Parse(time.RFC3339, processedAt); parseErr == nil {
			e.ProcessedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Load returns the full archived report for the given row ID.
func (s *Store) Load(id int64) (*types.AnalysisReport, error) {
	var blob string
	err := s.db.QueryRow(`SELECT report_json FROM reports WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying report %d: %w", id, err)
	}

	var report types.AnalysisReport
	if err := json.Unmarshal([]byte(blob), &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report %d: %w", id, err)
	}
	return &report, nil
}

// ExportYAML writes an archived report to w as YAML.
func (s *Store) ExportYAML(w io.Writer, id int64) error {
	report, err := s.Load(id)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = w.Write(data)
	return err
}
