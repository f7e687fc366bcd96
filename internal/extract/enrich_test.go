package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsift/internal/domain"
	"docsift/mocks"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		in     string
		want   *parsedRef
		wantOK bool
	}{
		{"d1:3:p5", &parsedRef{DocShortID: "1", PageNumber: 3, ElementShortID: "p5"}, true},
		{"d2:10:t3:4", &parsedRef{DocShortID: "2", PageNumber: 10, ElementShortID: "t3", RowNumber: 4, HasRow: true}, true},
		{" d1:1:kv2 ", &parsedRef{DocShortID: "1", PageNumber: 1, ElementShortID: "kv2"}, true},
		{"1:3:p5", nil, false},
		{"d1:3", nil, false},
		{"d1:x:p5", nil, false},
		{"d1:3:P5", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		got, ok := parseReference(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestUnionPolygon(t *testing.T) {
	assert.Nil(t, UnionPolygon(nil))

	// Single polygon collapses to its own bounding rectangle.
	got := UnionPolygon([][]float64{{1, 2, 3, 2, 3, 4, 1, 4}})
	assert.Equal(t, []float64{1, 2, 3, 2, 3, 4, 1, 4}, got)

	// Union spans both polygons.
	got = UnionPolygon([][]float64{
		{0, 0, 1, 0, 1, 1, 0, 1},
		{2, 3, 4, 3, 4, 5, 2, 5},
	})
	assert.Equal(t, []float64{0, 0, 4, 0, 4, 5, 0, 5}, got)
}

func TestElementPolygonTableRow(t *testing.T) {
	elem := &domain.DocumentElement{
		Type: domain.ElementTable,
		BoundingRegions: []domain.BoundingRegion{
			{PageNumber: 1, Polygon: []float64{0, 0, 10, 0, 10, 10, 0, 10}},
		},
		Cells: []domain.TableCell{
			{RowIndex: 0, ColumnIndex: 0, BoundingRegions: []domain.BoundingRegion{{Polygon: []float64{0, 0, 5, 0, 5, 1, 0, 1}}}},
			{RowIndex: 2, ColumnIndex: 0, BoundingRegions: []domain.BoundingRegion{{Polygon: []float64{0, 4, 5, 4, 5, 5, 0, 5}}}},
			{RowIndex: 2, ColumnIndex: 1, BoundingRegions: []domain.BoundingRegion{{Polygon: []float64{5, 4, 9, 4, 9, 5, 5, 5}}}},
		},
	}

	// Row reference unions only that row's cells.
	assert.Equal(t, []float64{0, 4, 9, 4, 9, 5, 0, 5}, elementPolygon(elem, 2, true))

	// Without a row the element regions win.
	assert.Equal(t, []float64{0, 0, 10, 0, 10, 10, 0, 10}, elementPolygon(elem, 0, false))

	// A row with no matching cells falls back to the element regions.
	assert.Equal(t, []float64{0, 0, 10, 0, 10, 10, 0, 10}, elementPolygon(elem, 9, true))
}

func TestElementPolygonKeyValue(t *testing.T) {
	elem := &domain.DocumentElement{
		Type: domain.ElementKeyValuePair,
		Key: &domain.KeyValuePart{BoundingRegions: []domain.BoundingRegion{
			{Polygon: []float64{0, 0, 2, 0, 2, 1, 0, 1}},
		}},
		Value: &domain.KeyValuePart{BoundingRegions: []domain.BoundingRegion{
			{Polygon: []float64{3, 0, 6, 0, 6, 1, 3, 1}},
		}},
	}
	assert.Equal(t, []float64{0, 0, 6, 0, 6, 1, 0, 1}, elementPolygon(elem, 0, false))
}

func testDocument() *domain.Document {
	return &domain.Document{
		ID: "doc-1",
		Elements: domain.ElementList{
			{
				ShortID:    "p5",
				PageNumber: 3,
				Type:       domain.ElementParagraph,
				BoundingRegions: []domain.BoundingRegion{
					{PageNumber: 3, Polygon: []float64{1, 1, 2, 1, 2, 2, 1, 2}},
				},
			},
		},
	}
}

func testPages() []domain.DocumentPage {
	return []domain.DocumentPage{
		{ID: "page-3", DocumentID: "doc-1", PageNumber: 3, Width: 8.5, Height: 11, Unit: "inch"},
	}
}

func TestEnrichFieldItemsFullGranularity(t *testing.T) {
	docs := new(mocks.MockDocumentRepo)
	pages := new(mocks.MockPageRepo)
	docs.On("GetByIDs", mock.Anything, []string{"doc-1"}).Return([]domain.Document{*testDocument()}, nil)
	pages.On("ListByDocument", mock.Anything, "doc-1").Return(testPages(), nil).Once()

	e := NewEnricher(docs, pages)
	items := []domain.LLMFieldItem{
		{Name: "total", Content: "42.00", References: []string{"d1:3:p5", "garbage", "d1:3:missing1"}},
	}

	out, err := e.EnrichFieldItems(context.Background(), items, map[string]string{"1": "doc-1"}, domain.GranularityFull, "gpt-4o")
	require.NoError(t, err)

	fr := out["total"]
	assert.Equal(t, "42.00", fr.Content)
	assert.Equal(t, "gpt-4o", fr.CreatedBy)
	require.Len(t, fr.References, 1, "malformed and unresolvable tokens dropped")

	ref := fr.References[0]
	assert.Equal(t, "doc-1", ref.DocumentID)
	assert.Equal(t, "page-3", ref.PageID)
	assert.Equal(t, 3, ref.PageNumber)
	assert.Equal(t, 8.5, ref.PageWidth)
	assert.Equal(t, []float64{1, 1, 2, 1, 2, 2, 1, 2}, ref.Polygon)
	assert.Equal(t, "d1:3:p5", ref.LLMReference)
	assert.Empty(t, fr.PageReferences)
}

func TestEnrichFieldItemsPageGranularityDedupes(t *testing.T) {
	docs := new(mocks.MockDocumentRepo)
	pages := new(mocks.MockPageRepo)
	docs.On("GetByIDs", mock.Anything, []string{"doc-1"}).Return([]domain.Document{*testDocument()}, nil)
	pages.On("ListByDocument", mock.Anything, "doc-1").Return(testPages(), nil).Once()

	e := NewEnricher(docs, pages)
	items := []domain.LLMFieldItem{
		{Name: "total", References: []string{"d1:3:p5", "d1:3:p9"}},
	}

	out, err := e.EnrichFieldItems(context.Background(), items, map[string]string{"1": "doc-1"}, domain.GranularityPage, "gpt-4o")
	require.NoError(t, err)

	fr := out["total"]
	assert.Empty(t, fr.References)
	require.Len(t, fr.PageReferences, 1, "same page referenced twice collapses")
	assert.Equal(t, "page-3", fr.PageReferences[0].PageID)
}

func TestEnrichFieldItemsNoneGranularitySkipsLookups(t *testing.T) {
	docs := new(mocks.MockDocumentRepo)
	pages := new(mocks.MockPageRepo)

	e := NewEnricher(docs, pages)
	out, err := e.EnrichFieldItems(context.Background(), []domain.LLMFieldItem{
		{Name: "total", Content: "1", References: []string{"d1:3:p5"}},
	}, map[string]string{"1": "doc-1"}, domain.GranularityNone, "gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, "1", out["total"].Content)
	assert.Empty(t, out["total"].References)
	docs.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
}

func TestEnrichCompositeItems(t *testing.T) {
	docs := new(mocks.MockDocumentRepo)
	pages := new(mocks.MockPageRepo)
	docs.On("GetByIDs", mock.Anything, []string{"doc-1"}).Return([]domain.Document{*testDocument()}, nil)
	pages.On("ListByDocument", mock.Anything, "doc-1").Return(testPages(), nil)

	e := NewEnricher(docs, pages)
	items := []map[string]domain.LLMFieldItem{
		{
			"quantity":   {Name: "line_items.quantity", Content: "2", References: []string{"d1:3:p5"}},
			"unit_price": {Name: "line_items.unit_price", Content: "21.00"},
		},
	}

	out, err := e.EnrichCompositeItems(context.Background(), items, map[string]string{"1": "doc-1"}, domain.GranularityFull, "gpt-4o")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0]["quantity"].Content)
	assert.Len(t, out[0]["quantity"].References, 1)
	assert.Empty(t, out[0]["unit_price"].References)
}
