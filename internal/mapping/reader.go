package mapping

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readCSVTable reads a CSV mapping file. The first row is the header; rows
// with a field count different from the header are malformed.
func readCSVTable(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mapping file '%s': %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // Field counts are validated per row below.

	allRows, err := reader.ReadAll()
	if err != nil {
		if parseErr, ok := err.(*csv.ParseError); ok {
			return nil, nil, fmt.Errorf("%w: parse error in '%s' on line %d, column %d: %v", ErrMalformedMapping, path, parseErr.Line, parseErr.Column, parseErr.Err)
		}
		return nil, nil, fmt.Errorf("%w: failed to read rows from '%s': %v", ErrMalformedMapping, path, err)
	}
	if len(allRows) == 0 {
		return nil, nil, fmt.Errorf("%w: '%s' is empty", ErrMalformedMapping, path)
	}

	headers := make([]string, len(allRows[0]))
	for i, h := range allRows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(allRows)-1)
	for i, row := range allRows[1:] {
		if len(row) != len(headers) {
			return nil, nil, fmt.Errorf("%w: row %d in '%s' has %d fields, expected %d", ErrMalformedMapping, i+2, path, len(row), len(headers))
		}
		rec := make(map[string]string, len(headers))
		for j, value := range row {
			if headers[j] != "" {
				rec[headers[j]] = value
			}
		}
		rows = append(rows, rec)
	}
	return headers, rows, nil
}

// readXLSXTable reads the first sheet of an Excel mapping workbook with the
// same header/row contract as the CSV reader. Short rows are padded with
// empty cells because excelize trims trailing blanks.
func readXLSXTable(path string) ([]string, []map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mapping workbook '%s': %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: workbook '%s' contains no sheets", ErrMalformedMapping, path)
	}
	sheet := sheets[0]

	allRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get rows from sheet '%s' in '%s': %w", sheet, path, err)
	}
	if len(allRows) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet '%s' in '%s' is empty", ErrMalformedMapping, sheet, path)
	}

	headers := make([]string, len(allRows[0]))
	for i, h := range allRows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(allRows)-1)
	for _, row := range allRows[1:] {
		rec := make(map[string]string, len(headers))
		for j, header := range headers {
			if header == "" {
				continue
			}
			if j < len(row) {
				rec[header] = row[j]
			} else {
				rec[header] = ""
			}
		}
		rows = append(rows, rec)
	}
	return headers, rows, nil
}
