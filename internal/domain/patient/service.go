package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/db"
	"github.com/asilo/asilo/internal/platform/telemetry"
	"github.com/asilo/asilo/internal/platform/validation"
)

// FileTree removes every stored document of a patient.
type FileTree interface {
	RemovePatientTree(ctx context.Context, patientID uuid.UUID) error
}

type Service struct {
	repo    Repository
	tx      db.TxRunner
	files   FileTree
	metrics telemetry.Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithClock sets the clock used for age derivation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, tx db.TxRunner, files FileTree, metrics telemetry.Recorder, opts ...Option) *Service {
	if metrics == nil {
		metrics = telemetry.Nop{}
	}
	s := &Service{
		repo:    repo,
		tx:      tx,
		files:   files,
		metrics: metrics,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) withAge(p *Patient) *Patient {
	p.Age = AgeOn(p.BirthDate.Time, s.now())
	return p
}

func (s *Service) fromRequest(p *Patient, req Request) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	birth, err := ParseDate(req.BirthDate)
	if err != nil {
		return apierr.Validation("Fecha de nacimiento inválida")
	}
	p.NationalID = req.NationalID
	p.FirstName = strings.TrimSpace(req.FirstName)
	p.LastName = strings.TrimSpace(req.LastName)
	p.BirthDate = birth
	p.Sex = req.Sex
	p.HealthStatus = nil
	if req.HealthStatus != nil {
		if hs := strings.TrimSpace(*req.HealthStatus); hs != "" {
			p.HealthStatus = &hs
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req Request) (*Patient, error) {
	p := &Patient{}
	if err := s.fromRequest(p, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

// Exists reports whether id names a stored patient.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apierr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		s.withAge(p)
	}
	return items, total, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req Request) (*Patient, error) {
	var p *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.fromRequest(p, req); err != nil {
			return err
		}
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

// Delete removes the patient and its document rows in one transaction and
// then the stored files. A failed file cleanup leaves orphans behind but
// does not fail the request.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	cleanupErr := s.files.RemovePatientTree(ctx, id)
	s.metrics.RecordPatientTreeCleanup(cleanupErr)
	if cleanupErr != nil {
		s.logger.Error().Err(cleanupErr).Str("patient_id", id.String()).Msg("patient document cleanup failed")
	}
	return nil
}
