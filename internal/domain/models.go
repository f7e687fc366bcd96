package domain

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document represents a parsed document as produced by the parsing subsystem.
// Elements and subdocuments are stored as JSONB alongside the row.
type Document struct {
	ID           string          `db:"id" json:"id"`
	FileName     string          `db:"file_name" json:"file_name"`
	DocumentType string          `db:"document_type" json:"document_type"`
	Status       string          `db:"status" json:"status"`
	FileSHA256   string          `db:"file_sha256" json:"file_sha256"`
	PageCount    int             `db:"page_count" json:"page_count"`
	Elements     ElementList     `db:"elements" json:"elements,omitempty"`
	SubDocuments SubDocumentList `db:"subdocuments" json:"subdocuments,omitempty"`
	SplitMeta    *SplitMeta      `db:"split_meta" json:"split_meta,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// DocumentPage is a single parsed page with its content representations
// and physical dimensions.
type DocumentPage struct {
	ID              string  `db:"id" json:"id"`
	DocumentID      string  `db:"document_id" json:"document_id"`
	PageNumber      int     `db:"page_number" json:"page_number"`
	Content         string  `db:"content" json:"content"`
	ContentMarkdown string  `db:"content_markdown" json:"content_markdown"`
	ContentHTML     string  `db:"content_html" json:"content_html"`
	Width           float64 `db:"width" json:"width"`
	Height          float64 `db:"height" json:"height"`
	Unit            string  `db:"unit" json:"unit"`
}

// BoundingRegion is an element's location on a page: a flat polygon of
// alternating x,y coordinates.
type BoundingRegion struct {
	PageNumber int       `json:"page_number"`
	Polygon    []float64 `json:"polygon"`
}

// TableCell is a single cell of a table element.
type TableCell struct {
	RowIndex        int              `json:"row_index"`
	ColumnIndex     int              `json:"column_index"`
	Content         string           `json:"content"`
	BoundingRegions []BoundingRegion `json:"bounding_regions,omitempty"`
}

// KeyValuePart is the key or value half of a key-value pair element.
type KeyValuePart struct {
	Content         string           `json:"content"`
	BoundingRegions []BoundingRegion `json:"bounding_regions,omitempty"`
}

// DocumentElement is a parsed element (paragraph, table, key-value pair)
// addressable by its short id inside LLM-facing text.
type DocumentElement struct {
	ID              string           `json:"id"`
	PageID          string           `json:"page_id"`
	PageNumber      int              `json:"page_number"`
	ShortID         string           `json:"short_id"`
	Type            ElementType      `json:"type"`
	BoundingRegions []BoundingRegion `json:"bounding_regions,omitempty"`
	Cells           []TableCell      `json:"cells,omitempty"`
	Key             *KeyValuePart    `json:"key,omitempty"`
	Value           *KeyValuePart    `json:"value,omitempty"`
}

// ElementList lets a document's elements round-trip through a JSONB column.
type ElementList []DocumentElement

func (l ElementList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ElementList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// SubDocumentPageRef points at a single page within a sub-document.
type SubDocumentPageRef struct {
	DocumentID string `json:"document_id"`
	PageID     string `json:"page_id"`
	PageNumber int    `json:"page_number"`
}

// SubDocument is a classified segment of a parent document, persisted by
// the splitter.
type SubDocument struct {
	ID           string               `json:"id"`
	CaseType     string               `json:"case_type"`
	DocumentType string               `json:"document_type"`
	PageRefs     []SubDocumentPageRef `json:"page_refs"`
	CreatedAt    time.Time            `json:"created_at"`
}

// SubDocumentList round-trips through a JSONB column.
type SubDocumentList []SubDocument

func (l SubDocumentList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *SubDocumentList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// SplitMeta records what the last split/classify run saw, enabling
// hash-based idempotency.
type SplitMeta struct {
	FileSHA256  string    `json:"file_sha256"`
	ConfigHash  string    `json:"config_hash"`
	CaseType    string    `json:"case_type"`
	CompletedAt time.Time `json:"completed_at"`
}

func (m *SplitMeta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *SplitMeta) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	return scanJSON(src, m)
}

// Case groups documents under a named matter with a case type that drives
// configuration resolution.
type Case struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"type" json:"type"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CompositeID builds a deterministic identifier from its parts, used for
// sub-document ids so re-splitting the same document is an overwrite.
func CompositeID(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
