package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aicert/pkg/report"

	_ "github.com/lib/pq"
)

// PostgresStore archives reports in PostgreSQL for shared deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps db and applies the schema.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS compliance_reports (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		application_name TEXT NOT NULL,
		policy_folder TEXT,
		content_hash TEXT,
		compliant BOOLEAN NOT NULL,
		combined JSONB NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_application ON compliance_reports (application_name, archived_at);
	CREATE INDEX IF NOT EXISTS idx_reports_contract ON compliance_reports (contract_id, archived_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
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
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.ContractID, rec.ApplicationName, rec.PolicyFolder, rec.ContentHash,
		rec.Compliant, string(combined), rec.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
		FROM compliance_reports
		WHERE id = $1
	`
	return scanPGRecord(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationName string, limit int) ([]*Record, error) {
	query := `
		SELECT id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
		FROM compliance_reports
		WHERE application_name = $1
		ORDER BY archived_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, applicationName, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, err := scanPGRecord(rows)
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

func (s *PostgresStore) Latest(ctx context.Context, contractID string) (*Record, error) {
	query := `
		SELECT id, contract_id, application_name, policy_folder, content_hash, compliant, combined, archived_at
		FROM compliance_reports
		WHERE contract_id = $1
		ORDER BY archived_at DESC
		LIMIT 1
	`
	rec, err := scanPGRecord(s.db.QueryRowContext(ctx, query, contractID))
	if err == errRecordNotFound {
		return nil, nil
	}
	return rec, err
}

func scanPGRecord(row rowScanner) (*Record, error) {
	var (
		rec          Record
		combinedJSON []byte
	)
	err := row.Scan(&rec.ID, &rec.ContractID, &rec.ApplicationName, &rec.PolicyFolder,
		&rec.ContentHash, &rec.Compliant, &combinedJSON, &rec.ArchivedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errRecordNotFound
		}
		return nil, err
	}

	var combined report.Combined
	if err := json.Unmarshal(combinedJSON, &combined); err != nil {
		return nil, fmt.Errorf("corrupt archived report %s: %w", rec.ID, err)
	}
	rec.Combined = &combined
	return &rec, nil
}
