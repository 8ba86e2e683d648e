package loader

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AcceptsValidItems(t *testing.T) {
	input := `[
		{"retailer_id": "X1", "name": "Test", "price": 100, "image_url": "https://img/1.jpg"},
		{"retailer_id": 42, "name": "Numeric id", "price": "19.99", "image_url": "https://img/2.jpg"}
	]`

	res, err := Parse(strings.NewReader(input), "")
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, "X1", res.Items[0].RetailerID)
	assert.Equal(t, 100.0, res.Items[0].Price.Float64())
	assert.Equal(t, "42", res.Items[1].RetailerID)
	assert.Equal(t, 19.99, res.Items[1].Price.Float64())
	assert.Zero(t, res.Rejected)
	assert.Empty(t, res.Warnings())
}

func TestParse_MissingPriceOnlyItem(t *testing.T) {
	res, err := Parse(strings.NewReader(`[{"retailer_id": "X1", "name": "No price"}]`), "")
	assert.ErrorIs(t, err, ErrNoValidItems)
	require.NotNil(t, res)
	assert.Empty(t, res.Items)
	assert.Equal(t, 1, res.Rejected)
}

func TestParse_RejectsInvalidElements(t *testing.T) {
	input := `[
		{"retailer_id": "OK", "name": "Good", "price": 1},
		{"retailer_id": "", "name": "Empty id", "price": 1},
		{"retailer_id": "NONAME", "price": 1},
		{"retailer_id": "BADPRICE", "name": "x", "price": "abc"},
		{"retailer_id": "NULLPRICE", "name": "x", "price": null},
		{"retailer_id": "BOOLPRICE", "name": "x", "price": true},
		{"retailer_id": "BADNAME", "name": 5, "price": 1},
		"not an object",
		null
	]`

	res, err := Parse(strings.NewReader(input), "")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "OK", res.Items[0].RetailerID)
	assert.Equal(t, 8, res.Rejected)
	assert.Equal(t, 1, res.MissingImage)
}

func TestParse_FileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyFile},
		{"whitespace", "  \n ", ErrEmptyFile},
		{"object", `{"retailer_id": "X1"}`, ErrNotArray},
		{"scalar", `42`, ErrNotArray},
		{"null", `null`, ErrNotArray},
		{"empty array", `[]`, ErrNoValidItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Parse(strings.NewReader(`[{`), "")
	assert.Error(t, err)
}

func TestParse_Warnings(t *testing.T) {
	input := `[
		{"retailer_id": "A", "name": "a", "price": 1, "url": "https://www.myshop.com/a"},
		{"retailer_id": "B", "name": "b", "price": 2, "url": "https://elsewhere.org/b", "image_url": "https://img/b.jpg"}
	]`

	res, err := Parse(strings.NewReader(input), "https://myshop.com")
	require.NoError(t, err)
	assert.Equal(t, 1, res.MissingImage)
	assert.Equal(t, 1, res.OffsiteURLs)

	warnings := res.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "1 item has no image")
	assert.Contains(t, warnings[1], "outside the website domain")
}

func TestParse_PreservesPriceRepresentation(t *testing.T) {
	res, err := Parse(strings.NewReader(`[{"retailer_id": "A", "name": "a", "price": "1500"}]`), "")
	require.NoError(t, err)

	out, err := res.Items[0].Price.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1500"`, string(out))
}

func TestCheckFileType(t *testing.T) {
	assert.NoError(t, CheckFileType("products.json", ""))
	assert.NoError(t, CheckFileType("PRODUCTS.JSON", "text/plain"))
	assert.NoError(t, CheckFileType("upload", "application/json; charset=utf-8"))
	assert.ErrorIs(t, CheckFileType("products.csv", "text/csv"), ErrUnsupportedType)
	assert.ErrorIs(t, CheckFileType("", ""), ErrUnsupportedType)
}

func TestSample_IsLoadable(t *testing.T) {
	res, err := Parse(bytes.NewReader(Sample()), "https://myshop.com")
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	ids := []string{res.Items[0].RetailerID, res.Items[1].RetailerID, res.Items[2].RetailerID}
	assert.Equal(t, []string{"TSHIRT_WHITE_001", "MUG_CERAMIC_002", "CREAM_FACE_003"}, ids)
	assert.Equal(t, 1500.0, res.Items[0].Price.Float64())
	assert.Zero(t, res.MissingImage)
	assert.Zero(t, res.OffsiteURLs)
}
