package pools

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Hons90/CRM/internal/apperr"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetExt is the only accepted upload format.
const SpreadsheetExt = ".xlsx"

var ErrNoSheets = errors.New("spreadsheet has no sheets")

// CheckSpreadsheetName rejects uploads that are not .xlsx files.
func CheckSpreadsheetName(filename string) error {
	if strings.ToLower(filepath.Ext(filename)) != SpreadsheetExt {
		return apperr.Validation("only %s files are allowed", SpreadsheetExt)
	}
	return nil
}

// ParseSpreadsheet returns column 0 of every row of the first sheet.
// Rows without a first cell yield "". Validation of the values is left to ImportNumbers.
func ParseSpreadsheet(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("unreadable spreadsheet: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %w", apperr.ErrValidation, ErrNoSheets)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation("read sheet %q: %v", sheets[0], err)
	}

	out := make([]string, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			out[i] = row[0]
		}
	}
	return out, nil
}
