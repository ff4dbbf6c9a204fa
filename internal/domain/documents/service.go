package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/blobstore"
	"github.com/asilo/asilo/internal/platform/reporting"
	"github.com/asilo/asilo/internal/platform/telemetry"
)

const (
	MsgInvalidArea = "Área inválida"
	MsgMissingFile = "No se envió el archivo"
	MsgOnlyPDF     = "Solo se permiten archivos PDF"

	maxTitleLen = 200
)

// PatientChecker confirms a patient exists before files are stored for it.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo     Repository
	patients PatientChecker
	store    blobstore.Store
	resolver *blobstore.Resolver
	metrics  telemetry.Recorder
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientChecker, store blobstore.Store, resolver *blobstore.Resolver, metrics telemetry.Recorder, logger zerolog.Logger) *Service {
	if metrics == nil {
		metrics = telemetry.Nop{}
	}
	return &Service{
		repo:     repo,
		patients: patients,
		store:    store,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Service) parseArea(raw string) (blobstore.Area, error) {
	a, err := blobstore.ParseArea(raw)
	if err != nil {
		return 0, apierr.Validation(MsgInvalidArea)
	}
	return a, nil
}

func isPDF(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	return mt == MimePDF
}

// Upload stores the file under the patient's area directory and records
// it. The stored file is removed again when the row cannot be written.
func (s *Service) Upload(ctx context.Context, u Upload) (*Document, error) {
	area, err := s.parseArea(u.Area)
	if err != nil {
		s.metrics.RecordUploadRejected("area")
		return nil, err
	}
	if u.Content == nil {
		s.metrics.RecordUploadRejected("missing_file")
		return nil, apierr.Validation(MsgMissingFile)
	}
	if !isPDF(u.MimeType) {
		s.metrics.RecordUploadRejected("mime_type")
		return nil, apierr.Validation(MsgOnlyPDF)
	}
	ok, err := s.patients.Exists(ctx, u.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		s.metrics.RecordUploadRejected("patient")
		return nil, apierr.NotFound(MsgPatientNotFound)
	}

	original := path.Base(strings.ReplaceAll(u.OriginalName, `\`, "/"))
	key, err := s.resolver.Prepare(ctx, u.PatientID, area, original)
	if err != nil {
		return nil, fmt.Errorf("prepare upload: %w", err)
	}
	size, err := s.store.Put(ctx, key, u.Content, MimePDF)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	title := strings.TrimSpace(u.Title)
	if title == "" {
		title = "Documento " + area.Slug()
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}

	doc := &Document{
		PatientID:    u.PatientID,
		Area:         area,
		Title:        title,
		OriginalName: original,
		MimeType:     MimePDF,
		SizeBytes:    size,
		StoragePath:  blobstore.StoragePath(key),
		UploadedBy:   u.UploadedBy,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Error().Err(derr).Str("key", key).Msg("remove orphaned upload")
		}
		return nil, err
	}
	s.metrics.RecordUpload(area.Slug(), size)
	return doc, nil
}

// List returns one area of a patient's documents, newest first.
func (s *Service) List(ctx context.Context, patientID uuid.UUID, rawArea string) ([]*Document, error) {
	area, err := s.parseArea(rawArea)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatientArea(ctx, patientID, area)
}

// Delete removes the row and then the stored file. A file that is already
// gone is not an error; other storage failures are logged.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	key, err := blobstore.KeyFromStoragePath(doc.StoragePath)
	if err != nil {
		s.logger.Warn().Err(err).Str("document_id", id.String()).Str("path", doc.StoragePath).Msg("document has no stored file key")
		return nil
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Error().Err(err).Str("document_id", id.String()).Str("key", key).Msg("remove document file")
	}
	return nil
}

// SummaryLines lists every document of a patient for the printable record
// sheet, grouped by area in enumeration order.
func (s *Service) SummaryLines(ctx context.Context, patientID uuid.UUID) ([]reporting.DocumentLine, error) {
	docs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Area < docs[j].Area })
	lines := make([]reporting.DocumentLine, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, reporting.DocumentLine{
			Area:         d.Area.Tag(),
			Title:        d.Title,
			OriginalName: d.OriginalName,
			SizeBytes:    d.SizeBytes,
			CreatedAt:    d.CreatedAt,
		})
	}
	return lines, nil
}
