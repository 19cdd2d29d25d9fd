// Package findings persists discovered vulnerabilities and episode summaries
// in a SQLite database so campaigns can be resumed and audited.
package findings

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"omnifuzz.local/fuzz/reward"
)

const schema = `
CREATE TABLE IF NOT EXISTS vulnerabilities (
	id         TEXT PRIMARY KEY,
	protocol   TEXT NOT NULL,
	type       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	detail     TEXT NOT NULL,
	message    TEXT NOT NULL,
	found_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vuln_protocol ON vulnerabilities(protocol);
CREATE INDEX IF NOT EXISTS idx_vuln_severity ON vulnerabilities(severity);

CREATE TABLE IF NOT EXISTS episodes (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	episode         INTEGER NOT NULL,
	total_reward    REAL NOT NULL,
	steps           INTEGER NOT NULL,
	vulnerabilities INTEGER NOT NULL,
	recorded_at     TIMESTAMP NOT NULL
);
`

// Finding is one stored vulnerability together with the triggering message.
type Finding struct {
	reward.Vulnerability
	Message []byte
	FoundAt time.Time
}

// EpisodeRecord is one stored episode summary.
type EpisodeRecord struct {
	Episode         int
	TotalReward     float64
	Steps           int
	Vulnerabilities int
	RecordedAt      time.Time
}

// Store is a SQLite-backed findings database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open findings db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init findings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordVulnerability stores one finding. The triggering message is hex
// encoded so findings stay greppable with the sqlite CLI.
func (s *Store) RecordVulnerability(v reward.Vulnerability, message []byte) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO vulnerabilities (id, protocol, type, severity, detail, message, found_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Protocol, v.Type, string(v.Severity), v.Detail,
		hex.EncodeToString(message), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record vulnerability %s: %w", v.ID, err)
	}
	return nil
}

// RecordEpisode stores one episode summary.
func (s *Store) RecordEpisode(rec EpisodeRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO episodes (episode, total_reward, steps, vulnerabilities, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Episode, rec.TotalReward, rec.Steps, rec.Vulnerabilities, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record episode %d: %w", rec.Episode, err)
	}
	return nil
}

// Vulnerabilities returns stored findings, newest first. An empty protocol
// returns every protocol's findings.
func (s *Store) Vulnerabilities(protocol string) ([]Finding, error) {
	query := `SELECT id, protocol, type, severity, detail, message, found_at
	          FROM vulnerabilities`
	args := []any{}
	if protocol != "" {
		query += ` WHERE protocol = ?`
		args = append(args, protocol)
	}
	query += ` ORDER BY found_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vulnerabilities: %w", err)
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var f Finding
		var severity, message string
		if err := rows.Scan(&f.ID, &f.Protocol, &f.Type, &severity, &f.Detail, &message, &f.FoundAt); err != nil {
			return nil, fmt.Errorf("scan vulnerability: %w", err)
		}
		f.Severity = reward.Severity(severity)
		if decoded, err := hex.DecodeString(message); err == nil {
			f.Message = decoded
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// CountBySeverity tallies stored findings per severity label.
func (s *Store) CountBySeverity() (map[reward.Severity]int, error) {
	rows, err := s.db.Query(`SELECT severity, COUNT(*) FROM vulnerabilities GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[reward.Severity]int)
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		counts[reward.Severity(severity)] = n
	}
	return counts, rows.Err()
}

// Episodes returns stored episode summaries in episode order.
func (s *Store) Episodes() ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode, total_reward, steps, vulnerabilities, recorded_at
		 FROM episodes ORDER BY episode`)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var records []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		if err := rows.Scan(&rec.Episode, &rec.TotalReward, &rec.Steps, &rec.Vulnerabilities, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
