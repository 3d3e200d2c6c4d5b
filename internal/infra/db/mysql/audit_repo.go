package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// AuditRepository persists lifecycle transitions to MySQL. It implements
// evidence.AuditLog.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Init creates the events table when it does not exist yet.
func (r *AuditRepository) Init(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS evidence_events (
  id          VARCHAR(36)  NOT NULL PRIMARY KEY,
  record_id   VARCHAR(64)  NOT NULL,
  case_id     VARCHAR(64)  NOT NULL,
  from_status VARCHAR(40)  NOT NULL,
  to_status   VARCHAR(40)  NOT NULL,
  note        TEXT         NOT NULL,
  occurred_at DATETIME(6)  NOT NULL,
  INDEX idx_evidence_events_record (record_id, occurred_at)
);`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Append inserts one transition row.
func (r *AuditRepository) Append(ctx context.Context, t evidence.Transition) error {
	const q = `
INSERT INTO evidence_events
  (id, record_id, case_id, from_status, to_status, note, occurred_at)
VALUES (?,?,?,?,?,?,?);
`
	occurredAt := t.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		uuid.NewString(), stringOrDash(t.RecordID), t.CaseID,
		string(t.FromStatus), string(t.ToStatus), t.Note, occurredAt)
	return err
}

// Recent returns the latest transitions for one record, newest first.
func (r *AuditRepository) Recent(ctx context.Context, recordID string, limit int) ([]evidence.Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT record_id, case_id, from_status, to_status, note, occurred_at
FROM evidence_events
WHERE record_id=?
ORDER BY occurred_at DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, recordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []evidence.Transition
	for rows.Next() {
		var t evidence.Transition
		if err := rows.Scan(&t.RecordID, &t.CaseID, &t.FromStatus, &t.ToStatus, &t.Note, &t.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
