package catalogsheet

import (
	"bytes"
	"testing"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, db.DefaultCatalog()))

	fragrances, skipped, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, fragrances, 10)

	assert.Equal(t, "camphor", fragrances[0].CategoryID)
	assert.Equal(t, "pure-camphor", fragrances[0].ID)
	assert.Equal(t, "249.00", fragrances[0].Price.String())
	assert.Equal(t, 67, fragrances[0].ReviewCount)
	assert.True(t, fragrances[0].Featured)
	assert.False(t, fragrances[1].Featured)
}

func sheetWith(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestRead_SkipsInvalidRows(t *testing.T) {
	buf := sheetWith(t,
		[]interface{}{"Category_ID", "fragrance_id", "name", "price", "rating"},
		[]interface{}{"wood-infused", "rosewood", "Rosewood", "₹329", "4.5"},
		[]interface{}{"wood-infused", "", "Nameless", "100", ""},
		[]interface{}{"", "", "", "", ""},
		[]interface{}{"camphor", "mint", "Camphor Mint", "cheap", ""},
		[]interface{}{"camphor", "rose-2", "Rose", "199", "9"},
	)

	fragrances, skipped, err := Read(buf)
	require.NoError(t, err)
	require.Len(t, fragrances, 1)
	assert.Equal(t, model.NewMoneyFromFloat(329).String(), fragrances[0].Price.String())
	assert.Equal(t, 4.5, fragrances[0].Rating)

	require.Len(t, skipped, 3)
	assert.Equal(t, 3, skipped[0].Row)
	assert.Equal(t, 5, skipped[1].Row)
	assert.Equal(t, 6, skipped[2].Row)
}

func TestRead_MissingColumn(t *testing.T) {
	buf := sheetWith(t,
		[]interface{}{"category_id", "fragrance_id", "name"},
		[]interface{}{"camphor", "mint", "Mint"},
	)
	_, _, err := Read(buf)
	assert.ErrorContains(t, err, "price")

	_, _, err = Read(sheetWith(t, []interface{}{"category_id"}))
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestRead_FeaturedColumn(t *testing.T) {
	buf := sheetWith(t,
		[]interface{}{"category_id", "fragrance_id", "name", "price", "featured"},
		[]interface{}{"camphor", "mint", "Camphor Mint", "199", "TRUE"},
		[]interface{}{"camphor", "tulsi", "Camphor Tulsi", "199", ""},
		[]interface{}{"camphor", "clove", "Camphor Clove", "199", "sometimes"},
	)

	fragrances, skipped, err := Read(buf)
	require.NoError(t, err)
	require.Len(t, fragrances, 2)
	assert.True(t, fragrances[0].Featured)
	assert.False(t, fragrances[1].Featured)

	require.Len(t, skipped, 1)
	assert.Equal(t, 4, skipped[0].Row)
	assert.Equal(t, "featured must be true or false", skipped[0].Reason)
}
