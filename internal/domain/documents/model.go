package documents

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/blobstore"
)

// MimePDF is the only accepted upload type.
const MimePDF = "application/pdf"

// Document is an uploaded PDF filed under one area of a patient's record.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	PatientID    uuid.UUID      `json:"pacienteId"`
	Area         blobstore.Area `json:"area"`
	Title        string         `json:"titulo"`
	OriginalName string         `json:"nombreOriginal"`
	MimeType     string         `json:"mimeType"`
	SizeBytes    int64          `json:"tamanoBytes"`
	StoragePath  string         `json:"rutaArchivo"`
	UploadedBy   *uuid.UUID     `json:"usuarioId"`
	CreatedAt    time.Time      `json:"creadoEn"`
}

// Upload is one incoming file. A nil Content means no file was sent.
type Upload struct {
	PatientID    uuid.UUID
	Area         string
	Title        string
	OriginalName string
	MimeType     string
	Content      io.Reader
	UploadedBy   *uuid.UUID
}
