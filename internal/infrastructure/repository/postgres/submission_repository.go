package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/finverge/fieldops/internal/core/domain"
)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	client_key TEXT NOT NULL DEFAULT '',
	operation_type TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	attachments JSONB NOT NULL DEFAULT '[]'::jsonb,
	within_range BOOLEAN NOT NULL,
	distance_meters DOUBLE PRECISION NOT NULL,
	override_applied BOOLEAN NOT NULL DEFAULT FALSE,
	sync_status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_client_key ON submissions(client_key) WHERE client_key <> '';
CREATE INDEX IF NOT EXISTS idx_submissions_sync_status ON submissions(sync_status);
CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Create(ctx context.Context, rec *domain.SubmissionRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	attachmentsJSON, err := json.Marshal(rec.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO submissions (
	id, client_key, operation_type, subject_id, fields, attachments, within_range, distance_meters, override_applied, sync_status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		rec.ID, rec.ClientKey, string(rec.OperationType), rec.SubjectID, fieldsJSON, attachmentsJSON,
		rec.GeoFence.WithinRange, rec.GeoFence.DistanceMeters, rec.Override, string(rec.SyncStatus), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *SubmissionRepository) GetByClientKey(ctx context.Context, clientKey string) (*domain.SubmissionRecord, error) {
	return r.getOne(ctx, `WHERE client_key = $1 AND client_key <> ''`, clientKey)
}

func (r *SubmissionRepository) getOne(ctx context.Context, where string, arg any) (*domain.SubmissionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, client_key, operation_type, subject_id, fields, attachments, within_range, distance_meters, override_applied, sync_status, created_at
FROM submissions
`+where, arg)

	var rec domain.SubmissionRecord
	var fieldsRaw, attachmentsRaw []byte
	var opType, syncStatus string

	err := row.Scan(
		&rec.ID, &rec.ClientKey, &opType, &rec.SubjectID, &fieldsRaw, &attachmentsRaw,
		&rec.GeoFence.WithinRange, &rec.GeoFence.DistanceMeters, &rec.Override, &syncStatus, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("%v", arg))
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}

	if err := json.Unmarshal(fieldsRaw, &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(attachmentsRaw, &rec.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	rec.OperationType = domain.OperationType(opType)
	rec.SyncStatus = domain.SyncStatus(syncStatus)
	return &rec, nil
}

func (r *SubmissionRepository) UpdateSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET sync_status = $2
WHERE id = $1
`, id, string(status))
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync status rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSubmissionNotFound, "update sync status", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *SubmissionRepository) ListPendingSync(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM submissions
WHERE sync_status IN ($1, $2)
ORDER BY created_at
LIMIT $3
`, string(domain.SyncPending), string(domain.SyncFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending submissions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}
	return ids, nil
}
