package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/blobstore"
	"github.com/asilo/asilo/internal/platform/db"
)

const (
	MsgNotFound        = "Documento no encontrado"
	MsgPatientNotFound = "Paciente no encontrado"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const documentCols = `id, patient_id, area, title, original_name, mime_type,
	size_bytes, storage_path, uploaded_by, created_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		d    Document
		area string
	)
	err := row.Scan(&d.ID, &d.PatientID, &area, &d.Title, &d.OriginalName, &d.MimeType,
		&d.SizeBytes, &d.StoragePath, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if d.Area, err = blobstore.ParseArea(area); err != nil {
		return nil, fmt.Errorf("document %s: %w", d.ID, err)
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_document (id, patient_id, area, title, original_name, mime_type,
			size_bytes, storage_path, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		d.ID, d.PatientID, d.Area.Tag(), d.Title, d.OriginalName, d.MimeType,
		d.SizeBytes, d.StoragePath, d.UploadedBy,
	).Scan(&d.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		// patient removed between the existence check and the insert
		return apierr.NotFound(MsgPatientNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := scanDocument(r.conn(ctx).QueryRow(ctx, `SELECT `+documentCols+` FROM patient_document WHERE id = $1`, id))
	return d, db.NotFoundOr(err, MsgNotFound)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_document WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound(MsgNotFound)
	}
	return nil
}

func (r *repoPG) ListByPatientArea(ctx context.Context, patientID uuid.UUID, area blobstore.Area) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+documentCols+` FROM patient_document
		WHERE patient_id = $1 AND area = $2
		ORDER BY created_at DESC, id`, patientID, area.Tag())
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+documentCols+` FROM patient_document
		WHERE patient_id = $1
		ORDER BY area, created_at DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Document, error) {
	defer rows.Close()
	items := []*Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
