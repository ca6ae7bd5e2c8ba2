package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/phpdave11/gofpdf"
)

const (
	pageMargin   = 14.0
	pageHeight   = 297.0
	rowHeight    = 7.0
	headerHeight = 8.0
	lineHeight   = 4.5
	cellPadding  = 2.5
)

var (
	pdfHeaders = []string{"Tanggal", "Kategori", "Subkategori", "Deskripsi", "Jumlah", "Tipe"}
	pdfWidths  = []float64{24, 28, 28, 50, 32, 20}
	pdfAligns  = []string{"L", "L", "L", "L", "R", "L"}
)

// PDF renders the report as an A4 portrait document.
func PDF(r Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "", 18)
	pdf.Text(pageMargin, 22, tr("Laporan Keuangan"))

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(pageMargin, 30, tr("Periode: "+r.Period))

	startY := 40.0
	if r.Summary != nil {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(pageMargin, 40, tr("Total Pemasukan: "+FormatRupiah(r.Summary.TotalIncome.Minor)))
		pdf.Text(pageMargin, 46, tr("Total Pengeluaran: "+FormatRupiah(r.Summary.TotalExpense.Minor)))
		pdf.Text(pageMargin, 52, tr("Saldo: "+FormatRupiah(r.Summary.Balance.Minor)))
		startY = 60
	}

	pdf.SetXY(pageMargin, startY)
	drawHeader(pdf, tr)

	pdf.SetFont("Helvetica", "", 9)
	for i, tx := range r.Transactions {
		cells := []string{
			FormatDateID(tx.Date),
			tx.Category,
			orDash(tx.Subcategory),
			orDash(tx.Description),
			FormatRupiah(tx.Amount.Minor),
			typeLabel(tx.Type),
		}
		lines := make([][]string, len(cells))
		height := rowHeight
		for c, text := range cells {
			lines[c] = wrapText(pdf, tr(text), pdfWidths[c]-2)
			if h := float64(len(lines[c]))*lineHeight + cellPadding; h > height {
				height = h
			}
		}

		if pdf.GetY()+height > pageHeight-pageMargin {
			pdf.AddPage()
			drawHeader(pdf, tr)
			pdf.SetFont("Helvetica", "", 9)
		}

		y := pdf.GetY()
		x := pageMargin
		pdf.SetFillColor(245, 245, 250)
		for c := range cells {
			if i%2 == 1 {
				pdf.Rect(x, y, pdfWidths[c], height, "F")
			}
			top := y + (height-float64(len(lines[c]))*lineHeight)/2
			for n, line := range lines[c] {
				pdf.SetXY(x, top+float64(n)*lineHeight)
				pdf.CellFormat(pdfWidths[c], lineHeight, line, "", 0, pdfAligns[c], false, 0, "")
			}
			x += pdfWidths[c]
		}
		pdf.SetXY(pageMargin, y+height)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(79, 70, 229)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range pdfHeaders {
		ln := 0
		if i == len(pdfHeaders)-1 {
			ln = 1
		}
		pdf.CellFormat(pdfWidths[i], headerHeight, tr(h), "", ln, pdfAligns[i], true, 0, "")
	}
	pdf.SetTextColor(30, 30, 30)
}

// wrapText splits s into lines no wider than width. Words longer than the
// column are broken inside the word.
func wrapText(pdf *gofpdf.Fpdf, s string, width float64) []string {
	var out []string
	for _, line := range pdf.SplitLines([]byte(s), width) {
		out = append(out, string(line))
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

// PDFDataURI renders the report as a base64 data URI.
func PDFDataURI(r Report) (string, error) {
	b, err := PDF(r)
	if err != nil {
		return "", err
	}
	return "data:" + MimePDF + ";filename=generated.pdf;base64," + base64.StdEncoding.EncodeToString(b), nil
}

// PDFBase64 renders the report as bare base64.
func PDFBase64(r Report) (string, error) {
	b, err := PDF(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SavePDF writes the report to filename, or to the default name when empty,
// and returns the path written.
func SavePDF(r Report, filename string) (string, error) {
	b, err := PDF(r)
	if err != nil {
		return "", err
	}
	name := Filename(filename, r.Period, ExtPDF)
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", fmt.Errorf("save pdf: %w", err)
	}
	return name, nil
}
