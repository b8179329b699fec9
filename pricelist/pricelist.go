// Package pricelist loads the supplier's wholesale price list into an
// in-memory index. The spreadsheet is the price authority: when a scraped
// product's name appears here, this price always wins over the scraped one.
package pricelist

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"catalog-ingest/internal/types"

	"github.com/xuri/excelize/v2"
)

const (
	// Markup is the fixed additive amount applied to a wholesale price to
	// derive the retail price.
	Markup = 0.50

	// dataStartRow is the first data row; rows above it are headers. The
	// column order below is a hard contract with the supplier's export.
	dataStartRow = 3

	colBrand     = 0
	colName      = 1
	colBarcode   = 2
	colItemCode  = 3
	colUnitPrice = 4
	colCommodity = 5

	// fragranceCommodityCode is the customs classification for perfumes and
	// toilet waters. Rows carrying it are excluded from the catalog.
	fragranceCommodityCode = "3303"
)

// expectedHeaders is what the second header row should contain, by position.
// A mismatch is reported but loading proceeds positionally, matching the
// supplier's export which has never renamed columns, only retitled the sheet.
var expectedHeaders = []string{"brand", "name", "barcode", "item", "price", "commodity"}

// Index maps normalized (lower-cased, trimmed) product names to their
// authoritative price records.
type Index map[string]types.PriceRecord

// Lookup returns the price record for a product name, normalizing the key
// the same way Load does.
func (idx Index) Lookup(name string) (types.PriceRecord, bool) {
	rec, ok := idx[Normalize(name)]
	return rec, ok
}

// Normalize produces the index key for a product name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Loader reads the price list workbook.
type Loader struct {
	logger types.Logger
}

// NewLoader creates a price list loader.
func NewLoader(logger types.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load parses the workbook at path into an Index. A missing file is not
// fatal: prices fall back to scraped values, so it logs a warning and
// returns an empty index. A file that exists but cannot be parsed is an
// error, which aborts the run upstream.
func (l *Loader) Load(path string) (Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		l.logger.Warnf("Price list %s not found, continuing with scraped prices only", path)
		return Index{}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price list: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	if len(rows) >= dataStartRow-1 {
		l.checkHeaders(rows[dataStartRow-2])
	}

	index := Index{}
	skipped := 0

	for i := dataStartRow - 1; i < len(rows); i++ {
		rec, ok := l.parseRow(rows[i])
		if !ok {
			skipped++
			continue
		}
		index[rec.NormalizedName] = rec
	}

	l.logger.Infof("Loaded %d price records from %s (%d rows skipped)", len(index), path, skipped)
	return index, nil
}

// checkHeaders validates the header row against the expected column labels.
func (l *Loader) checkHeaders(header []string) {
	for i, want := range expectedHeaders {
		if i >= len(header) {
			l.logger.Warnf("Price list header has %d columns, expected at least %d", len(header), len(expectedHeaders))
			return
		}
		if !strings.Contains(strings.ToLower(header[i]), want) {
			l.logger.Warnf("Price list column %d is %q, expected it to mention %q; trusting positions anyway", i+1, header[i], want)
		}
	}
}

func (l *Loader) parseRow(row []string) (types.PriceRecord, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	name := cell(colName)
	if name == "" {
		return types.PriceRecord{}, false
	}

	if strings.HasPrefix(cell(colCommodity), fragranceCommodityCode) {
		l.logger.Debugf("Skipping fragrance-classified row: %s", name)
		return types.PriceRecord{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimPrefix(cell(colUnitPrice), "£"), 64)
	if err != nil || price <= 0 {
		return types.PriceRecord{}, false
	}

	return types.PriceRecord{
		NormalizedName: Normalize(name),
		OriginalPrice:  price,
		FinalPrice:     price + Markup,
		Brand:          cell(colBrand),
		Barcode:        cell(colBarcode),
		ItemCode:       cell(colItemCode),
	}, true
}
