package reporting

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func TestRenderPatientSummary(t *testing.T) {
	docs := make([]DocumentLine, 0, 60)
	for i := 0; i < 60; i++ {
		docs = append(docs, DocumentLine{
			Area:         "MEDICO",
			Title:        fmt.Sprintf("Valoración geriátrica número %d con un título bastante largo", i),
			OriginalName: "valoracion.pdf",
			SizeBytes:    1024,
			CreatedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		})
	}

	var buf bytes.Buffer
	err := RenderPatientSummary(&buf, PatientSummary{
		NationalID:   "0102030405",
		FirstName:    "José",
		LastName:     "Muñoz",
		BirthDate:    time.Date(1940, 3, 2, 0, 0, 0, 0, time.UTC),
		Age:          84,
		Sex:          "M",
		HealthStatus: "Estable",
		Documents:    docs,
		GeneratedAt:  time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC),
		GeneratedBy:  "admin@asilo.test",
	})
	if err != nil {
		t.Fatalf("RenderPatientSummary: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:16])
	}
	if buf.Len() < 1000 {
		t.Errorf("suspiciously small PDF: %d bytes", buf.Len())
	}
}

func TestRenderPatientSummary_NoDocuments(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPatientSummary(&buf, PatientSummary{FirstName: "Ana", LastName: "Paz"}); err != nil {
		t.Fatalf("RenderPatientSummary: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("corto", 10); got != "corto" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncate("áéíóúáéíóú", 5); got != "áéíó…" {
		t.Errorf("unexpected %q", got)
	}
}
