package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aicert/pkg/report"

	_ "modernc.org/sqlite"
)

// SQLiteStore archives reports in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and applies the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) the database at path and returns a migrated
// store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open report archive: %w", err)
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS compliance_reports (
        id TEXT PRIMARY KEY,
        contract_id TEXT NOT NULL,
        application_name TEXT NOT NULL,
        policy_folder TEXT,
        content_hash TEXT,
        compliant INTEGER NOT NULL,
        combined JSON NOT NULL,
        archived_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_reports_application ON compliance_reports (application_name, archived_at);
    CREATE INDEX IF NOT EXISTS idx_reports_contract ON compliance_reports (contract_id, archived_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	combined, err := json.Marshal(rec.Combined)
	if err != nil {
		return fmt.Errorf("marshal combined report: %w", err)
	}

	query := `INSERT INTO compliance_reports (
		id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.ContractID, rec.ApplicationName, rec.PolicyFolder, rec.ContentHash,
		rec.Compliant, string(combined), rec.ArchivedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	query := `
        SELECT id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
        FROM compliance_reports
        WHERE id = ?
    `
	return scanRecord(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) ListByApplication(ctx context.Context, applicationName string, limit int) ([]*Record, error) {
	query := `
        SELECT id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
        FROM compliance_reports
        WHERE application_name = ?
        ORDER BY archived_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, applicationName, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStore) Latest(ctx context.Context, contractID string) (*Record, error) {
	query := `
        SELECT id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
        FROM compliance_reports
        WHERE contract_id = ?
        ORDER BY archived_at DESC
        LIMIT 1
    `
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, contractID))
	if err == errRecordNotFound {
		return nil, nil
	}
	return rec, err
}

var errRecordNotFound = fmt.Errorf("report record not found")

// rowScanner lets the scan helper serve both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec          Record
		compliant    int
		combinedJSON string
		archivedAt   string
	)
	err := row.Scan(&rec.ID, &rec.ContractID, &rec.ApplicationName, &rec.PolicyFolder,
		&rec.ContentHash, &compliant, &combinedJSON, &archivedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errRecordNotFound
		}
		return nil, err
	}
	rec.Compliant = compliant != 0

	var combined report.Combined
	if err := json.Unmarshal([]byte(combinedJSON), &combined); err != nil {
		return nil, fmt.Errorf("corrupt archived report %s: %w", rec.ID, err)
	}
	rec.Combined = &combined
	rec.ArchivedAt = parseTime(archivedAt)
	return &rec, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
