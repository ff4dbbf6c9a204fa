package blobstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix is prepended to keys to form the stored relative path and
// the URL the file is served under.
const PublicPrefix = "uploads"

const patientsDir = "pacientes"

var (
	randomSuffixMax = big.NewInt(1_000_000_000)
	extPattern      = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)
)

// Resolver derives document locations from {patient, area, filename} and
// owns the per-patient folder lifecycle.
type Resolver struct {
	store  Store
	now    func() time.Time
	random func() (int64, error)
}

type ResolverOption func(*Resolver)

func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

func WithRandomSource(random func() (int64, error)) ResolverOption {
	return func(r *Resolver) { r.random = random }
}

func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, now: time.Now, random: cryptoRandom}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cryptoRandom() (int64, error) {
	n, err := rand.Int(rand.Reader, randomSuffixMax)
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

// Resolve validates area and returns the folder for that patient and area.
func (r *Resolver) Resolve(patientID uuid.UUID, area string) (string, Area, error) {
	a, err := ParseArea(area)
	if err != nil {
		return "", 0, err
	}
	return r.Dir(patientID, a), a, nil
}

func (r *Resolver) Dir(patientID uuid.UUID, area Area) string {
	return path.Join(r.PatientDir(patientID), area.Slug())
}

func (r *Resolver) PatientDir(patientID uuid.UUID) string {
	return path.Join(patientsDir, patientID.String())
}

// GenerateFilename returns <unixMillis>-<random> plus the original
// extension. The random part is drawn from [0, 1e9).
func (r *Resolver) GenerateFilename(original string) (string, error) {
	n, err := r.random()
	if err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	return fmt.Sprintf("%d-%d%s", r.now().UnixMilli(), n, Extension(original)), nil
}

// Extension returns the lower-cased extension of a client-supplied file
// name, or "" when it has none or it looks unsafe.
func Extension(original string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	ext := path.Ext(base)
	if ext == base || !extPattern.MatchString(ext) {
		return ""
	}
	return strings.ToLower(ext)
}

// Prepare ensures the folder exists and returns the key for a new upload.
func (r *Resolver) Prepare(ctx context.Context, patientID uuid.UUID, area Area, original string) (string, error) {
	dir := r.Dir(patientID, area)
	if err := r.store.EnsureDir(ctx, dir); err != nil {
		return "", fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	name, err := r.GenerateFilename(original)
	if err != nil {
		return "", err
	}
	return path.Join(dir, name), nil
}

// RemovePatientTree deletes every file stored for the patient. Callers run
// it only after the database delete has committed.
func (r *Resolver) RemovePatientTree(ctx context.Context, patientID uuid.UUID) error {
	if err := r.store.RemoveAll(ctx, r.PatientDir(patientID)); err != nil {
		return fmt.Errorf("remove patient tree: %w", err)
	}
	return nil
}

// StoragePath turns a store key into the relative path persisted with the
// document, e.g. uploads/pacientes/<id>/medico/<file>.pdf.
func StoragePath(key string) string {
	return PublicPrefix + "/" + key
}

// KeyFromStoragePath reverses StoragePath and rejects paths outside it.
func KeyFromStoragePath(p string) (string, error) {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	rest, ok := strings.CutPrefix(p, PublicPrefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, p)
	}
	return CleanKey(rest)
}
