// Package archive persists combined compliance reports for later retrieval
// and audit. SQLite backs local runs; PostgreSQL backs shared deployments.
package archive

import (
	"context"
	"time"

	"github.com/Mindburn-Labs/aicert/pkg/report"
)

// Record is one archived pipeline run.
type Record struct {
	ID              string           `json:"id"`
	ContractID      string           `json:"contract_id"`
	ApplicationName string           `json:"application_name"`
	PolicyFolder    string           `json:"policy_folder"`
	ContentHash     string           `json:"content_hash"`
	Compliant       bool             `json:"compliant"`
	Combined        *report.Combined `json:"combined"`
	ArchivedAt      time.Time        `json:"archived_at"`
}

// Store archives combined results.
type Store interface {
	// Save persists a record, assigning ArchivedAt if unset.
	Save(ctx context.Context, rec *Record) error
	// Get returns the record with the given id.
	Get(ctx context.Context, id string) (*Record, error)
	// ListByApplication returns the most recent records for one
	// application, newest first.
	ListByApplication(ctx context.Context, applicationName string, limit int) ([]*Record, error)
	// Latest returns the newest record for a contract, or nil when the
	// contract has never been archived.
	Latest(ctx context.Context, contractID string) (*Record, error)
}
