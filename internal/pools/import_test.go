package pools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Hons90/CRM/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, cells map[string]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetList()[0]
	for axis, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, axis, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseSpreadsheet_FirstColumnOfEveryRow(t *testing.T) {
	buf := buildWorkbook(t, map[string]any{
		"A1": 5551234,
		"A2": "abc",
		"B3": "ignored",
		"A4": "999",
		"B4": "second column",
	})

	rows, err := ParseSpreadsheet(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"5551234", "abc", "", "999"}, rows)

	valid := FilterPhoneNumbers(rows)
	assert.Equal(t, []string{"5551234", "999"}, valid)
}

func TestParseSpreadsheet_RejectsGarbage(t *testing.T) {
	_, err := ParseSpreadsheet(strings.NewReader("not a zip"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCheckSpreadsheetName(t *testing.T) {
	assert.NoError(t, CheckSpreadsheetName("leads.xlsx"))
	assert.NoError(t, CheckSpreadsheetName("LEADS.XLSX"))
	assert.ErrorIs(t, CheckSpreadsheetName("leads.csv"), apperr.ErrValidation)
	assert.ErrorIs(t, CheckSpreadsheetName("leads"), apperr.ErrValidation)
}
