package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/blobstore"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByPatientArea returns the documents of one area, newest first.
	ListByPatientArea(ctx context.Context, patientID uuid.UUID, area blobstore.Area) ([]*Document, error)
	// ListByPatient returns every document of a patient, newest first
	// within each area.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error)
}
