// Package export flattens stored records into spreadsheets.
package export

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/islamic-data/internal/model"
)

// fixedColumns lead every sheet; field columns follow in sorted order.
var fixedColumns = []string{"id", "status", "sources"}

// Columns returns the header row for records: the fixed columns, then the
// union of their field names sorted.
func Columns(records []model.Record) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec.Fields {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return append(append([]string(nil), fixedColumns...), fields...)
}

// Row flattens rec under columns. Strings and numbers are written as-is;
// nested values are written as compact JSON.
func Row(rec model.Record, columns []string) ([]string, error) {
	row := make([]string, len(columns))
	for i, col := range columns {
		var v any
		switch col {
		case "id":
			v = rec.ID
		case "status":
			v = string(rec.Status)
		case "sources":
			v = rec.Sources
		default:
			v = rec.Fields[col]
		}
		cell, err := cellText(v)
		if err != nil {
			return nil, eris.Wrapf(err, "export: %s column %s", rec.ID, col)
		}
		row[i] = cell
	}
	return row, nil
}

func cellText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int, int64, float64, bool:
		return fmt.Sprint(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteXLSX writes records to a single-sheet workbook at path.
func WriteXLSX(path, sheetName string, records []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %q", sheetName)
	}

	columns := Columns(records)
	header := sheet.AddRow()
	for _, c := range columns {
		header.AddCell().SetString(c)
	}

	for _, rec := range records {
		cells, err := Row(rec, columns)
		if err != nil {
			return err
		}
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}
