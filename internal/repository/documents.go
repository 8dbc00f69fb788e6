package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// DocumentRow is the persisted view of an ingested file.
type DocumentRow struct {
	ID         uuid.UUID
	TenantID   string
	SourcePath string
	Format     string
	HashHex    string
	Status     constants.DocumentStatus
	UploadedAt time.Time
}

// DocumentRepository stores ingested documents keyed by content hash for
// dedup.
type DocumentRepository interface {
	// UpsertByHash returns the existing row when the (tenant, hash) pair was
	// seen before; dedup is true in that case and no new row is written.
	UpsertByHash(ctx context.Context, tenantID, sourcePath, format, hashHex string, uploadedAt time.Time) (*DocumentRow, bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*DocumentRow, error)
}

type documentRepository struct {
	db     *sql.DB
	driver string
}

func NewDocumentRepository(db *sql.DB, driver string) DocumentRepository {
	return &documentRepository{db: db, driver: driver}
}

func (r *documentRepository) UpsertByHash(ctx context.Context, tenantID, sourcePath, format, hashHex string, uploadedAt time.Time) (*DocumentRow, bool, error) {
	row := r.db.QueryRowContext(ctx, rebind(r.driver, `
SELECT id, tenant_id, source_path, format, hash_hex, status, uploaded_at
FROM documents
WHERE tenant_id = $1 AND hash_hex = $2
`), tenantID, hashHex)

	existing, err := scanDocument(row)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	doc := &DocumentRow{
		ID:         uuid.New(),
		TenantID:   tenantID,
		SourcePath: sourcePath,
		Format:     format,
		HashHex:    hashHex,
		Status:     constants.DocumentPending,
		UploadedAt: uploadedAt.UTC(),
	}
	_, err = r.db.ExecContext(ctx, rebind(r.driver, `
INSERT INTO documents (id, tenant_id, source_path, format, hash_hex, status, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`),
		doc.ID.String(), doc.TenantID, doc.SourcePath, doc.Format, doc.HashHex,
		string(doc.Status), doc.UploadedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert document: %w", err)
	}
	return doc, false, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error {
	// placeholders stay in positional order so the sqlite rebind keeps
	// args aligned
	res, err := r.db.ExecContext(ctx, rebind(r.driver, `
UPDATE documents SET status = $1 WHERE id = $2
`), string(status), id.String())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*DocumentRow, error) {
	row := r.db.QueryRowContext(ctx, rebind(r.driver, `
SELECT id, tenant_id, source_path, format, hash_hex, status, uploaded_at
FROM documents
WHERE id = $1
`), id.String())

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return doc, err
}

func scanDocument(row *sql.Row) (*DocumentRow, error) {
	var (
		doc        DocumentRow
		id         string
		status     string
		uploadedAt string
	)
	if err := row.Scan(&id, &doc.TenantID, &doc.SourcePath, &doc.Format, &doc.HashHex, &status, &uploadedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	doc.ID = parsed
	doc.Status = constants.DocumentStatus(status)
	ts, err := time.Parse(time.RFC3339, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	doc.UploadedAt = ts
	return &doc, nil
}

// ToEntity rehydrates the raw document shell for reprocessing flows. Pages
// and content are reread from disk by the loader, not stored.
func (d *DocumentRow) ToEntity() *entity.RawDocument {
	return &entity.RawDocument{
		ID:         d.ID,
		TenantID:   d.TenantID,
		SourcePath: d.SourcePath,
		Format:     d.Format,
		HashHex:    d.HashHex,
		UploadedAt: d.UploadedAt,
	}
}
