package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsift/internal/domain"
)

func TestBuildWorkbook(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", FileName: "claim_bundle.pdf"}
	updatedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	recs := []domain.FieldResultRecord{
		{
			DocumentID:   "doc-1",
			DocumentType: "invoice",
			CaseType:     "insurance",
			FieldName:    "total_amount",
			Result: domain.FieldResult{
				Content:       "1,234.00",
				Justification: "Sum shown in the totals box.",
				Citation:      "Total: 1,234.00",
				CreatedBy:     "gpt-4o",
				References: []domain.Reference{
					{PageNumber: 3},
					{PageNumber: 1},
					{PageNumber: 3},
				},
			},
			UpdatedAt: updatedAt,
		},
		{
			DocumentID:    "doc-1",
			SubDocumentID: "sub-9",
			FieldName:     "vendor_name",
			Result:        domain.FieldResult{Content: "Acme Corp"},
			UpdatedAt:     updatedAt,
		},
	}

	f, err := BuildWorkbook(doc, recs)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, columns, got[0])

	assert.Equal(t, "claim_bundle.pdf", got[1][0])
	assert.Equal(t, "total_amount", got[1][4])
	assert.Equal(t, "1,234.00", got[1][5])
	assert.Equal(t, "1, 3", got[1][8], "cited pages deduped and sorted")
	assert.Equal(t, "gpt-4o", got[1][9])
	assert.Equal(t, "2026-03-01T09:30:00Z", got[1][10])

	assert.Equal(t, "sub-9", got[2][1])
	assert.Equal(t, "Acme Corp", got[2][5])
}

func TestBuildWorkbookEmpty(t *testing.T) {
	f, err := BuildWorkbook(&domain.Document{FileName: "empty.pdf"}, nil)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 1, "header only")
}

func TestReferencedPages(t *testing.T) {
	r := &domain.FieldResult{
		References:     []domain.Reference{{PageNumber: 5}},
		PageReferences: []domain.PageReference{{PageNumber: 2}, {PageNumber: 5}},
	}
	assert.Equal(t, "2, 5", referencedPages(r))
	assert.Equal(t, "", referencedPages(&domain.FieldResult{}))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Claim Bundle 2026", "Claim_Bundle_2026"},
		{"a/b\\c:d", "a_b_c_d"},
		{"__already__clean__", "already_clean"},
		{"ok-name_1", "ok-name_1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestBuildFilename(t *testing.T) {
	name := BuildFilename("Claim Bundle")
	assert.Contains(t, name, "Claim_Bundle_")
	assert.Contains(t, name, ".xlsx")
}
