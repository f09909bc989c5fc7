// Package catalogsheet reads and writes the fragrance import spreadsheet.
package catalogsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Fragrances"

// Columns is the header row, in order
var Columns = []string{
	"category_id",
	"fragrance_id",
	"name",
	"description",
	"price",
	"rating",
	"review_count",
	"image_key",
	"featured",
}

var ErrEmptySheet = errors.New("no data found in sheet")

// RowError reports a skipped row, 1-based as shown in spreadsheet apps
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Read parses the first sheet. Rows that cannot be imported are skipped and
// reported; a missing or malformed header fails the whole file.
func Read(r io.Reader) ([]model.Fragrance, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, ErrEmptySheet
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var fragrances []model.Fragrance
	var skipped []RowError
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(name string) string {
			j := index[name]
			if j < len(row) {
				return strings.TrimSpace(row[j])
			}
			return ""
		}
		if isBlank(row) {
			continue
		}

		fragrance, reason := parseRow(cell)
		if reason != "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: reason})
			continue
		}
		fragrances = append(fragrances, fragrance)
	}
	return fragrances, skipped, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"category_id", "fragrance_id", "name", "price"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	return index, nil
}

func parseRow(cell func(string) string) (model.Fragrance, string) {
	fragrance := model.Fragrance{
		CategoryID:  cell("category_id"),
		ID:          cell("fragrance_id"),
		Name:        cell("name"),
		Description: cell("description"),
		ImageKey:    cell("image_key"),
	}
	if fragrance.CategoryID == "" || fragrance.ID == "" || fragrance.Name == "" {
		return fragrance, "category_id, fragrance_id and name are required"
	}

	price, err := decimal.NewFromString(strings.TrimPrefix(cell("price"), "₹"))
	if err != nil || price.IsNegative() {
		return fragrance, "price must be a non-negative number"
	}
	fragrance.Price = model.NewMoney(price)

	if v := cell("rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			return fragrance, "rating must be between 0 and 5"
		}
		fragrance.Rating = rating
	}
	if v := cell("review_count"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil || count < 0 {
			return fragrance, "review_count must be a non-negative integer"
		}
		fragrance.ReviewCount = count
	}
	if v := cell("featured"); v != "" {
		featured, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return fragrance, "featured must be true or false"
		}
		fragrance.Featured = featured
	}
	return fragrance, ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write renders categories' fragrances in the import layout, so an export
// can be edited and imported again
func Write(w io.Writer, categories []model.Category) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, category := range categories {
		for _, fr := range category.Fragrances {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{
				category.ID,
				fr.ID,
				fr.Name,
				fr.Description,
				fr.Price.InexactFloat64(),
				fr.Rating,
				fr.ReviewCount,
				fr.ImageKey,
				fr.Featured,
			}
			if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
				return err
			}
			row++
		}
	}
	return f.Write(w)
}
