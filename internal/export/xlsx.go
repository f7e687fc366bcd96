// Package export renders persisted field results as an Excel workbook,
// one row per extracted field.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"docsift/internal/domain"
)

const sheetName = "Field Results"

// columns defines the header row.
var columns = []string{
	"Document",
	"Sub-document",
	"Document Type",
	"Case Type",
	"Field",
	"Value",
	"Justification",
	"Citation",
	"Pages",
	"Model",
	"Updated At",
}

// BuildWorkbook writes one row per field result. The document supplies
// the file name; rows follow the record order.
func BuildWorkbook(doc *domain.Document, recs []domain.FieldResultRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheetName)

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	for i := range recs {
		row := recordToRow(doc, &recs[i])
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("cell for row %d: %w", i+2, err)
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", i+2, err)
			}
		}
	}

	return f, nil
}

func recordToRow(doc *domain.Document, rec *domain.FieldResultRecord) []string {
	row := make([]string, len(columns))
	row[0] = doc.FileName
	row[1] = rec.SubDocumentID
	row[2] = rec.DocumentType
	row[3] = rec.CaseType
	row[4] = rec.FieldName
	row[5] = rec.Result.Content
	row[6] = rec.Result.Justification
	row[7] = rec.Result.Citation
	row[8] = referencedPages(&rec.Result)
	row[9] = rec.Result.CreatedBy
	row[10] = rec.UpdatedAt.Format(time.RFC3339)
	return row
}

// referencedPages lists the distinct page numbers a result cites,
// ascending, comma separated.
func referencedPages(r *domain.FieldResult) string {
	seen := make(map[int]struct{})
	for _, ref := range r.References {
		seen[ref.PageNumber] = struct{}{}
	}
	for _, ref := range r.PageReferences {
		seen[ref.PageNumber] = struct{}{}
	}
	if len(seen) == 0 {
		return ""
	}

	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_document_name}_{YYYY-MM-DD}.xlsx
func BuildFilename(documentName string) string {
	sanitized := SanitizeFilename(documentName)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.xlsx", sanitized, date)
}
