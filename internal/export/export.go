// Package export renders period reports of transactions as PDF documents and
// XLSX workbooks.
package export

import (
	"errors"
	"strings"
	"time"

	"dompet/internal/core"
)

const (
	ExtPDF  = "pdf"
	ExtXLSX = "xlsx"

	MimePDF  = "application/pdf"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrEmptyWorkbook is returned when a report has neither a summary nor any
// transaction, so no sheet would be written.
var ErrEmptyWorkbook = errors.New("workbook has no sheets")

// Report is the input of every renderer. Period is a free-form label such as
// "Januari 2025". Summary is optional.
type Report struct {
	Transactions []core.Transaction
	Period       string
	Summary      *core.Summary
}

// Format is a supported output format.
type Format string

const (
	FormatPDF  Format = ExtPDF
	FormatXLSX Format = ExtXLSX
)

// ParseFormat accepts "pdf" or "xlsx" in any case.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, true
	case FormatXLSX:
		return FormatXLSX, true
	}
	return "", false
}

func (f Format) MimeType() string {
	if f == FormatXLSX {
		return MimeXLSX
	}
	return MimePDF
}

// DefaultFilename builds Laporan_Keuangan_<period>.<ext>, replacing the first
// space of period with an underscore.
func DefaultFilename(period, ext string) string {
	return "Laporan_Keuangan_" + strings.Replace(period, " ", "_", 1) + "." + ext
}

// Filename returns name with ext appended when missing, or the default name
// for period when name is empty.
func Filename(name, period, ext string) string {
	if name == "" {
		return DefaultFilename(period, ext)
	}
	if strings.HasSuffix(name, "."+ext) {
		return name
	}
	return name + "." + ext
}

// FormatRupiah formats an amount as Indonesian Rupiah without decimals.
func FormatRupiah(amount int64) string {
	return core.FormatRupiah(amount)
}

var monthsID = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agt", "Sep", "Okt", "Nov", "Des"}

// FormatDateID formats t as "02 Jan 2006" with Indonesian month abbreviations.
func FormatDateID(t time.Time) string {
	return t.Format("02") + " " + monthsID[t.Month()-1] + " " + t.Format("2006")
}

func typeLabel(t core.TransactionType) string {
	if t == core.TypeIncome {
		return "Pemasukan"
	}
	return "Pengeluaran"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
