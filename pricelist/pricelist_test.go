package pricelist

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// writeWorkbook builds a price list file with the supplier's layout: two
// header rows, data from row 3.
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetCellValue(sheet, "A1", "Supplier Price List"))
	headers := []string{"Brand", "Name", "Barcode", "Item Code", "Unit Price", "Commodity Code"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}

	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+3)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}

	path := filepath.Join(t.TempDir(), "pricelist.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad_AppliesMarkup(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Acme", "Rose Soap", "5000000000001", "RS-01", 2.00, "34013000"},
	})

	index, err := NewLoader(testLogger()).Load(path)
	require.NoError(t, err)
	require.Len(t, index, 1)

	rec, ok := index.Lookup("Rose Soap")
	require.True(t, ok)
	assert.Equal(t, "rose soap", rec.NormalizedName)
	assert.InDelta(t, 2.00, rec.OriginalPrice, 0.001)
	assert.InDelta(t, 2.50, rec.FinalPrice, 0.001)
	assert.Equal(t, "Acme", rec.Brand)
	assert.Equal(t, "RS-01", rec.ItemCode)
}

func TestLoad_SkipsFragranceClassifiedRows(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Acme", "Rose Soap", "5000000000001", "RS-01", 2.00, "34013000"},
		{"Scent Co", "Midnight Oud", "5000000000002", "MO-01", 12.00, "33030010"},
	})

	index, err := NewLoader(testLogger()).Load(path)
	require.NoError(t, err)
	assert.Len(t, index, 1)

	_, ok := index.Lookup("Midnight Oud")
	assert.False(t, ok)
}

func TestLoad_SkipsInvalidRows(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Acme", "", "5000000000003", "XX-01", 3.00, "34013000"},      // no name
		{"Acme", "Free Sample", "5000000000004", "FS-01", 0, "34013000"}, // non-positive price
		{"Acme", "Lavender Soap", "5000000000005", "LS-01", "not a price", "34013000"},
		{"Acme", "Oat Soap", "5000000000006", "OS-01", 1.75, "34013000"},
	})

	index, err := NewLoader(testLogger()).Load(path)
	require.NoError(t, err)
	require.Len(t, index, 1)

	rec, ok := index.Lookup(" Oat Soap ")
	require.True(t, ok)
	assert.InDelta(t, 2.25, rec.FinalPrice, 0.001)
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	index, err := NewLoader(testLogger()).Load(filepath.Join(t.TempDir(), "absent.xlsx"))

	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestLoad_UnparseableFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not a workbook"), 0644))

	_, err := NewLoader(testLogger()).Load(path)
	assert.Error(t, err)
}

func TestLoad_LastDuplicateNameWins(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Acme", "Rose Soap", "5000000000001", "RS-01", 2.00, "34013000"},
		{"Acme", "rose soap", "5000000000001", "RS-02", 2.20, "34013000"},
	})

	index, err := NewLoader(testLogger()).Load(path)
	require.NoError(t, err)
	require.Len(t, index, 1)

	rec, _ := index.Lookup("ROSE SOAP")
	assert.Equal(t, "RS-02", rec.ItemCode)
}
