package domain

// ReferenceGranularity controls how much source-location detail is attached
// to an extracted field value.
type ReferenceGranularity string

const (
	GranularityFull ReferenceGranularity = "full"
	GranularityPage ReferenceGranularity = "page"
	GranularityNone ReferenceGranularity = "none"
)

// ContentMode selects which page content representation is rendered into
// the LLM context.
type ContentMode string

const (
	ContentModeMarkdown ContentMode = "markdown"
	ContentModeHTML     ContentMode = "html"
)

// ExtractionMode selects between the referenced field pipeline and direct
// structured-payload extraction.
type ExtractionMode string

const (
	ModeReferenced ExtractionMode = "referenced"
	ModeDirect     ExtractionMode = "direct"
)

// FieldDataType is the declared type of an extracted field value.
type FieldDataType string

const (
	DataTypeString   FieldDataType = "string"
	DataTypeDate     FieldDataType = "date"
	DataTypeNumber   FieldDataType = "number"
	DataTypeCurrency FieldDataType = "currency"
	DataTypeBoolean  FieldDataType = "boolean"
	DataTypeEnum     FieldDataType = "enum"
	DataTypeText     FieldDataType = "text"
)

// ElementType classifies a parsed document element.
type ElementType string

const (
	ElementParagraph    ElementType = "paragraph"
	ElementTable        ElementType = "table"
	ElementKeyValuePair ElementType = "key_value_pair"
	ElementImage        ElementType = "image"
	ElementBarcode      ElementType = "barcode"
)

// CaseTypeGeneric is the fallback case type for configuration resolution.
const CaseTypeGeneric = "generic"
