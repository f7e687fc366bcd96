package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// FieldValueOption is a single allowed value for an enum field, with
// optional guidance text for the LLM.
type FieldValueOption struct {
	Name   string `json:"name" mapstructure:"name"`
	Prompt string `json:"prompt,omitempty" mapstructure:"prompt"`
}

// FieldRequirement declares a dependency on a previously extracted field.
// A non-empty DocumentType marks the dependency as cross-document-type,
// exempting it from same-set consistency validation.
type FieldRequirement struct {
	FieldName    string `json:"field_name" mapstructure:"field_name"`
	DocumentType string `json:"document_type,omitempty" mapstructure:"document_type"`
}

// FieldDefinition describes one field to extract. Fields sharing a group
// are extracted together in a single LLM call.
type FieldDefinition struct {
	Name        string             `json:"name" mapstructure:"name"`
	Description string             `json:"description" mapstructure:"description"`
	DataType    FieldDataType      `json:"data_type" mapstructure:"data_type"`
	Prompt      string             `json:"prompt,omitempty" mapstructure:"prompt"`
	ValueList   []FieldValueOption `json:"value_list,omitempty" mapstructure:"value_list"`
	Group       int                `json:"group" mapstructure:"group"`
	Inputs      []FieldRequirement `json:"inputs,omitempty" mapstructure:"inputs"`
}

// RetrieverConfig selects and parameterizes a retriever implementation
// by name.
type RetrieverConfig struct {
	Name           string `json:"name" mapstructure:"name"`
	TopK           int    `json:"top_k" mapstructure:"top_k"`
	ContentField   string `json:"content_field,omitempty" mapstructure:"content_field"`
	EmbeddingModel string `json:"embedding_model,omitempty" mapstructure:"embedding_model"`
	IndexName      string `json:"index_name,omitempty" mapstructure:"index_name"`
	SearchField    string `json:"search_field,omitempty" mapstructure:"search_field"`
}

// PromptConfig is the LLM configuration for one extraction group or for
// split/classify. Templates carry {fields}, {context}, {FIELD_SCHEMA} and,
// for splitting, {batch_num}/{total_batches} placeholders.
type PromptConfig struct {
	Name         string `json:"name" mapstructure:"name"`
	CaseType     string `json:"case_type" mapstructure:"case_type"`
	DocumentType string `json:"document_type,omitempty" mapstructure:"document_type"`
	Groups       []int  `json:"groups,omitempty" mapstructure:"groups"`
	OutputSchema string `json:"output_schema" mapstructure:"output_schema"`

	SysPromptTemplate  string                 `json:"sys_prompt_template" mapstructure:"sys_prompt_template"`
	UserPromptTemplate string                 `json:"user_prompt_template" mapstructure:"user_prompt_template"`
	Model              string                 `json:"model" mapstructure:"model"`
	ValidationRetries  int                    `json:"validation_retries" mapstructure:"validation_retries"`
	TransportRetries   int                    `json:"transport_retries" mapstructure:"transport_retries"`
	LLMKwargs          map[string]interface{} `json:"llm_kwargs,omitempty" mapstructure:"llm_kwargs"`

	RetrieverConfig *RetrieverConfig     `json:"retriever_config,omitempty" mapstructure:"retriever_config"`
	ContentMode     ContentMode          `json:"content_mode" mapstructure:"content_mode"`
	Granularity     ReferenceGranularity `json:"reference_granularity" mapstructure:"reference_granularity"`

	// Split/classify specific.
	BatchSize     int `json:"batch_size,omitempty" mapstructure:"batch_size"`
	OverlapFactor int `json:"overlap_factor,omitempty" mapstructure:"overlap_factor"`
}

// Reference is a fully resolved source location: element polygon plus the
// dimensions of the page it sits on.
type Reference struct {
	DocumentID     string      `json:"document_id"`
	PageID         string      `json:"page_id"`
	PageNumber     int         `json:"page_number"`
	PageWidth      float64     `json:"page_width"`
	PageHeight     float64     `json:"page_height"`
	PageUnit       string      `json:"page_unit"`
	ElementType    ElementType `json:"element_type"`
	ElementShortID string      `json:"element_short_id"`
	Polygon        []float64   `json:"polygon"`
	LLMReference   string      `json:"llm_reference,omitempty"`
}

// PageReference is a page-granularity source location.
type PageReference struct {
	DocumentID string `json:"document_id"`
	PageID     string `json:"page_id"`
	PageNumber int    `json:"page_number"`
}

// FieldResult is the extracted value for a single field. Which optional
// fields are populated follows the configured reference granularity.
type FieldResult struct {
	Content        string          `json:"content,omitempty"`
	Justification  string          `json:"justification,omitempty"`
	Citation       string          `json:"citation,omitempty"`
	References     []Reference     `json:"references,omitempty"`
	PageReferences []PageReference `json:"page_references,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

func (r FieldResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *FieldResult) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// FieldResultRecord is the persisted form of a FieldResult. Its composite
// key (document_id, subdocument_id, field_name) makes re-extraction an
// idempotent overwrite.
type FieldResultRecord struct {
	DocumentID    string      `db:"document_id" json:"document_id"`
	DocumentType  string      `db:"document_type" json:"document_type"`
	SubDocumentID string      `db:"subdocument_id" json:"subdocument_id"`
	CaseType      string      `db:"case_type" json:"case_type"`
	FieldName     string      `db:"field_name" json:"field_name"`
	Result        FieldResult `db:"result" json:"result"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// FieldReference annotates a single leaf field path in direct mode.
type FieldReference struct {
	FieldPath      string          `json:"field_path"`
	Citation       string          `json:"citation,omitempty"`
	Justification  string          `json:"justification,omitempty"`
	References     []Reference     `json:"references,omitempty"`
	PageReferences []PageReference `json:"page_references,omitempty"`
}

// LLMFieldItem is the raw per-field output of the extraction LLM call.
// References hold unparsed reference tokens such as "d1:3:p5".
type LLMFieldItem struct {
	Name          string   `json:"name"`
	Content       string   `json:"content"`
	Justification string   `json:"justification"`
	Citation      string   `json:"citation"`
	References    []string `json:"references"`
}

// ExtractionRequest describes one extraction run.
type ExtractionRequest struct {
	CaseID          string               `json:"case_id,omitempty"`
	CaseType        string               `json:"case_type"`
	DocumentType    string               `json:"document_type"`
	DocumentIDs     []string             `json:"document_ids"`
	PageIDs         []string             `json:"page_ids,omitempty"`
	SubDocumentID   string               `json:"subdocument_id,omitempty"`
	Fields          []string             `json:"fields,omitempty"`
	FieldOverrides  []FieldDefinition    `json:"field_overrides,omitempty"`
	Mode            ExtractionMode       `json:"extraction_mode,omitempty"`
	OutputSchema    string               `json:"output_schema,omitempty"`
	InferReferences bool                 `json:"infer_references,omitempty"`
	Granularity     ReferenceGranularity `json:"reference_granularity,omitempty"`
	ContentMode     ContentMode          `json:"content_mode,omitempty"`
}

// GroupError reports the failure of a single extraction group. Other
// groups' results survive it.
type GroupError struct {
	Group int    `json:"group"`
	Error string `json:"error"`
}

// ExtractionResponse is the merged outcome of an extraction run.
type ExtractionResponse struct {
	DocumentID       string                              `json:"document_id"`
	DocumentType     string                              `json:"document_type"`
	CaseType         string                              `json:"case_type"`
	SubDocumentID    string                              `json:"subdocument_id,omitempty"`
	Mode             ExtractionMode                      `json:"extraction_mode"`
	Results          map[string]FieldResult              `json:"results"`
	CompositeResults map[string][]map[string]FieldResult `json:"composite_results,omitempty"`
	Direct           json.RawMessage                     `json:"direct,omitempty"`
	FieldReferences  []FieldReference                    `json:"field_references,omitempty"`
	GroupErrors      []GroupError                        `json:"group_errors,omitempty"`
	ModelUsed        string                              `json:"model_used"`
	Granularity      ReferenceGranularity                `json:"reference_granularity"`
}

// SplitRequest describes one split/classify run.
type SplitRequest struct {
	DocumentID string `json:"document_id"`
	CaseType   string `json:"case_type"`
	PromptName string `json:"prompt_name,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

// LLMFieldsResult is the flat extraction output container.
type LLMFieldsResult struct {
	Result []LLMFieldItem `json:"result"`
}

// LLMCompositeResult is the composite-schema output container: each item
// maps sub-field names to their extracted values.
type LLMCompositeResult struct {
	Result []map[string]LLMFieldItem `json:"result"`
}

// LLMFieldRefItem is one reference annotation from the reference
// inference pass in direct mode.
type LLMFieldRefItem struct {
	FieldPath     string   `json:"field_path"`
	Citation      string   `json:"citation"`
	Justification string   `json:"justification"`
	References    []string `json:"references"`
}

// ReferenceInferenceResult is the output container of the reference
// inference pass.
type ReferenceInferenceResult struct {
	Result []LLMFieldRefItem `json:"result"`
}

// SplitSegment is a run of pages classified as one logical sub-document.
type SplitSegment struct {
	DocumentType string `json:"document_type"`
	PageNumbers  []int  `json:"page_numbers"`
}

// PageSpan is an inclusive page-number range.
type PageSpan struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// BatchError reports the failure of a single classification batch.
type BatchError struct {
	BatchNum int      `json:"batch_num"`
	Pages    PageSpan `json:"pages"`
	Error    string   `json:"error"`
}

// LLMSplitBatchResult is the raw classification output for one batch of
// pages.
type LLMSplitBatchResult struct {
	Result []SplitSegment `json:"result"`
}

// SplitClassifyResult is the merged output of split/classify: segments
// cover every successfully classified page exactly once; Gaps lists page
// ranges no surviving batch covered.
type SplitClassifyResult struct {
	Segments     []SplitSegment `json:"segments"`
	SubDocuments []SubDocument  `json:"subdocuments,omitempty"`
	Gaps         []PageSpan     `json:"gaps,omitempty"`
	BatchErrors  []BatchError   `json:"batch_errors,omitempty"`
}
