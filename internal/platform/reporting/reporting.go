// Package reporting renders printable patient summaries.
package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// DocumentLine is one row of the document index.
type DocumentLine struct {
	Area         string
	Title        string
	OriginalName string
	SizeBytes    int64
	CreatedAt    time.Time
}

// PatientSummary is everything printed on a patient's record sheet.
type PatientSummary struct {
	NationalID   string
	FirstName    string
	LastName     string
	BirthDate    time.Time
	Age          int
	Sex          string
	HealthStatus string
	Documents    []DocumentLine
	GeneratedAt  time.Time
	GeneratedBy  string
}

const (
	facilityName = "Asilo - Ficha del residente"
	dateLayout   = "02-01-2006"
)

// RenderPatientSummary writes an A4 PDF for s to w.
func RenderPatientSummary(w io.Writer, s PatientSummary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Ficha %s %s", s.FirstName, s.LastName), true)
	pdf.SetCreator("asilo-server", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Generado el %s por %s - página %d",
			s.GeneratedAt.Format("02-01-2006 15:04"), s.GeneratedBy, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(facilityName))
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, tr("Datos personales"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	rows := [][2]string{
		{"Cédula", s.NationalID},
		{"Nombre", s.FirstName + " " + s.LastName},
		{"Fecha de nacimiento", s.BirthDate.Format(dateLayout)},
		{"Edad", fmt.Sprintf("%d años", s.Age)},
		{"Sexo", s.Sex},
		{"Estado de salud", orDash(s.HealthStatus)},
	}
	for _, r := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(50, 7, tr(r[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, tr(r[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Documentos (%d)", len(s.Documents))))
	pdf.Ln(10)

	if len(s.Documents) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 7, tr("Sin documentos registrados"))
		pdf.Ln(7)
	} else {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range []struct {
			w    float64
			text string
		}{{30, "Área"}, {70, "Título"}, {55, "Archivo"}, {25, "Fecha"}} {
			pdf.CellFormat(h.w, 7, tr(h.text), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, d := range s.Documents {
			pdf.CellFormat(30, 6, tr(d.Area), "1", 0, "L", false, 0, "")
			pdf.CellFormat(70, 6, tr(truncate(d.Title, 40)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(55, 6, tr(truncate(d.OriginalName, 32)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, d.CreatedAt.Format(dateLayout), "1", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render patient summary: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write patient summary: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
