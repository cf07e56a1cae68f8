// Package export renders stored records as flat files for spreadsheet
// review.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/propscout/propscout-cli/internal/model"
)

// Header is the column list shared by every export format.
func Header() []string {
	cols := append([]string{"id", "url"}, model.FieldNames()...)
	return append(cols, "costo_metro_cuadrado", "costo_m2_ponderado", "status", "created_at", "scraped_at")
}

// Row renders one record in Header order. Unresolved fields are empty
// cells, not zeros.
func Row(rec *model.PropertyRecord) []string {
	row := []string{rec.ID, rec.URL}
	for _, name := range model.FieldNames() {
		row = append(row, cell(rec.Fields[name]))
	}
	row = append(row,
		floatCell(rec.CostM2),
		floatCell(rec.CostM2W),
		string(rec.Status),
		rec.CreatedAt.Format(time.RFC3339),
		rec.ScrapedAt.Format(time.RFC3339),
	)
	return row
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// WriteCSV streams records as CSV.
func WriteCSV(w io.Writer, records []model.PropertyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range records {
		if err := cw.Write(Row(&records[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", records[i].URL)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes records as a single-sheet workbook.
func WriteXLSX(path string, records []model.PropertyRecord) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("properties")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Header() {
		header.AddCell().SetString(col)
	}

	for i := range records {
		row := sheet.AddRow()
		for _, val := range Row(&records[i]) {
			row.AddCell().SetString(val)
		}
	}

	return eris.Wrapf(wb.Save(path), "export: save %s", path)
}
