package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
	"certvault/pkg/requestcontext"
)

// Schema creates the mirror table.
const Schema = `
CREATE TABLE IF NOT EXISTS certificates (
	certificate_id   TEXT PRIMARY KEY,
	uid              TEXT NOT NULL,
	candidate_name   TEXT NOT NULL,
	course_name      TEXT NOT NULL,
	org_name         TEXT NOT NULL,
	content_address  TEXT NOT NULL,
	commit_timestamp TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore mirrors records into PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate mirror schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec models.LedgerRecord) error {
	const q = `
INSERT INTO certificates (certificate_id, uid, candidate_name, course_name, org_name, content_address, commit_timestamp, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (certificate_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, q,
		string(rec.Identity),
		rec.Fields.UID,
		rec.Fields.CandidateName,
		rec.Fields.CourseName,
		rec.Fields.OrgName,
		string(rec.ContentAddress),
		rec.CommitTimestamp,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("save mirror entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, id models.CertificateIdentity) (*Entry, error) {
	const q = `
SELECT certificate_id, uid, candidate_name, course_name, org_name, content_address, commit_timestamp, created_at
FROM certificates WHERE certificate_id = $1`
	var e Entry
	err := s.db.QueryRowContext(ctx, q, string(id)).Scan(
		&e.CertificateID, &e.UID, &e.CandidateName, &e.CourseName,
		&e.OrgName, &e.ContentAddress, &e.CommitTimestamp, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find mirror entry: %w", err)
	}
	return &e, nil
}
