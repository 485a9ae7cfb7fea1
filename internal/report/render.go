package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"rollbook/internal/apperr"
)

// Format is an output document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat defaults to PDF.
func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FormatPDF, nil
	case FormatPDF, FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	}
	return "", apperr.Invalid("format", "must be one of: pdf xlsx csv json")
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "application/pdf"
	}
}

var columns = []string{"Register No", "Name", "Department", "Class", "Working Days", "Present", "Absent", "Attendance %"}

func (r Row) cells() []string {
	return []string{
		r.RegisterNumber,
		r.Name,
		r.Department,
		r.Class,
		strconv.Itoa(r.WorkingDays),
		strconv.Itoa(r.Present),
		strconv.Itoa(r.Absent),
		strconv.Itoa(r.Percentage) + "%",
	}
}

func (s Summary) metaLines() []string {
	return []string{
		fmt.Sprintf("Total Working Days: %d", s.TotalWorkingDays),
		"Generated on: " + s.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
	}
}

// Render writes the summary to w in format f.
func Render(w io.Writer, s Summary, f Format) error {
	switch f {
	case FormatPDF:
		return RenderPDF(w, s)
	case FormatXLSX:
		return RenderXLSX(w, s)
	case FormatCSV:
		return RenderCSV(w, s)
	case FormatJSON:
		return json.NewEncoder(w).Encode(s)
	}
	return fmt.Errorf("render: unsupported format %q", f)
}

// RenderPDF writes a landscape A4 document: title, two metadata lines and
// the student table.
func RenderPDF(w io.Writer, s Summary) error {
	widths := []float64{35, 60, 45, 30, 28, 22, 22, 30}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(s.Title(), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, s.Title(), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, line := range s.metaLines() {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range columns {
		pdf.CellFormat(widths[i], 8, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, row := range s.Rows {
		for i, cell := range row.cells() {
			align := "L"
			if i >= 4 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 7, tr(cell), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// RenderXLSX writes a single-sheet workbook with the same layout as the PDF.
func RenderXLSX(w io.Writer, s Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Report"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	lines := [][]any{{s.Title()}}
	for _, m := range s.metaLines() {
		lines = append(lines, []any{m})
	}
	lines = append(lines, []any{})
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	lines = append(lines, header)
	for _, r := range s.Rows {
		lines = append(lines, []any{r.RegisterNumber, r.Name, r.Department, r.Class, r.WorkingDays, r.Present, r.Absent, r.Percentage})
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// RenderCSV writes the title and metadata as leading lines, then the table.
func RenderCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)
	records := [][]string{{s.Title()}}
	for _, m := range s.metaLines() {
		records = append(records, []string{m})
	}
	records = append(records, columns)
	for _, r := range s.Rows {
		records = append(records, r.cells())
	}
	return cw.WriteAll(records)
}
