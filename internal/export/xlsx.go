package export

import (
	"encoding/base64"
	"fmt"

	"github.com/xuri/excelize/v2"

	"dompet/internal/core"
)

const (
	sheetSummary = "Ringkasan"
	sheetIncome  = "Pemasukan"
	sheetExpense = "Pengeluaran"
	defaultSheet = "Sheet1"
)

var txColumns = []string{"Tanggal", "Kategori", "Subkategori", "Deskripsi", "Jumlah"}

// Workbook builds the report workbook. Sheets are written only when they
// have content: the summary sheet when a summary is present, the income and
// expense sheets when the report holds transactions of that type.
func Workbook(r Report) (*excelize.File, error) {
	income := core.FilterByType(r.Transactions, core.TypeIncome)
	expense := core.FilterByType(r.Transactions, core.TypeExpense)
	if r.Summary == nil && len(income) == 0 && len(expense) == 0 {
		return nil, ErrEmptyWorkbook
	}

	f := excelize.NewFile()
	if r.Summary != nil {
		rows := [][]any{
			{"Keterangan", "Nilai"},
			{"Periode", r.Period},
			{"Total Pemasukan", r.Summary.TotalIncome.Minor},
			{"Total Pengeluaran", r.Summary.TotalExpense.Minor},
			{"Saldo", r.Summary.Balance.Minor},
		}
		if err := writeSheet(f, sheetSummary, rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	for _, s := range []struct {
		name string
		txs  []core.Transaction
	}{{sheetIncome, income}, {sheetExpense, expense}} {
		if len(s.txs) == 0 {
			continue
		}
		if err := writeSheet(f, s.name, transactionRows(s.txs)); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

func transactionRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	header := make([]any, len(txColumns))
	for i, c := range txColumns {
		header[i] = c
	}
	rows = append(rows, header)
	for _, t := range txs {
		rows = append(rows, []any{
			t.Date.Format("2006-01-02"),
			t.Category,
			orDash(t.Subcategory),
			orDash(t.Description),
			t.Amount.Minor,
		})
	}
	return rows
}

func writeSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+1, err)
		}
	}
	return nil
}

// XLSX renders the report workbook to bytes.
func XLSX(r Report) ([]byte, error) {
	f, err := Workbook(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSXBase64 renders the report workbook as base64.
func XLSXBase64(r Report) (string, error) {
	b, err := XLSX(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SaveXLSX writes the workbook to filename, or to the default name when
// empty, and returns the path written.
func SaveXLSX(r Report, filename string) (string, error) {
	f, err := Workbook(r)
	if err != nil {
		return "", err
	}
	defer f.Close()
	name := Filename(filename, r.Period, ExtXLSX)
	if err := f.SaveAs(name); err != nil {
		return "", fmt.Errorf("save xlsx: %w", err)
	}
	return name, nil
}

// Render produces the report in the given format as base64 content.
func Render(r Report, f Format) (string, error) {
	if f == FormatXLSX {
		return XLSXBase64(r)
	}
	return PDFBase64(r)
}
