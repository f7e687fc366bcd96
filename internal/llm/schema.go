// Package llm turns prompt configurations into validated, typed LLM
// responses. The invoker owns the validation retry loop; transport
// retries live inside the completion client.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"docsift/internal/domain"
)

// Schema names registered by default.
const (
	SchemaDefault            = "default"
	SchemaComposite          = "composite"
	SchemaDirect             = "direct"
	SchemaSplitClassify      = "split_classify"
	SchemaReferenceInference = "reference_inference"
)

// DecodeFunc decodes raw LLM output text into a typed result.
type DecodeFunc func(raw string) (interface{}, error)

// Registry maps schema names to decoders.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]DecodeFunc
}

// NewRegistry creates a registry with the built-in schemas registered.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]DecodeFunc)}
	r.Register(SchemaDefault, func(raw string) (interface{}, error) {
		var out domain.LLMFieldsResult
		if err := decodeStrict(raw, &out); err != nil {
			return nil, err
		}
		if out.Result == nil {
			return nil, fmt.Errorf("missing result list")
		}
		return &out, nil
	})
	r.Register(SchemaComposite, func(raw string) (interface{}, error) {
		var out domain.LLMCompositeResult
		if err := decodeStrict(raw, &out); err != nil {
			return nil, err
		}
		if out.Result == nil {
			return nil, fmt.Errorf("missing result list")
		}
		return &out, nil
	})
	r.Register(SchemaSplitClassify, func(raw string) (interface{}, error) {
		var out domain.LLMSplitBatchResult
		if err := decodeStrict(raw, &out); err != nil {
			return nil, err
		}
		if out.Result == nil {
			return nil, fmt.Errorf("missing result list")
		}
		for _, seg := range out.Result {
			if seg.DocumentType == "" {
				return nil, fmt.Errorf("segment missing document_type")
			}
			if len(seg.PageNumbers) == 0 {
				return nil, fmt.Errorf("segment %q has no page numbers", seg.DocumentType)
			}
		}
		return &out, nil
	})
	r.Register(SchemaDirect, func(raw string) (interface{}, error) {
		s := stripFences(raw)
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("not valid JSON")
		}
		return json.RawMessage(s), nil
	})
	r.Register(SchemaReferenceInference, func(raw string) (interface{}, error) {
		var out domain.ReferenceInferenceResult
		if err := decodeStrict(raw, &out); err != nil {
			return nil, err
		}
		if out.Result == nil {
			return nil, fmt.Errorf("missing result list")
		}
		return &out, nil
	})
	return r
}

// Register adds or replaces a schema decoder.
func (r *Registry) Register(name string, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = fn
}

// Get looks up a registered decoder by name.
func (r *Registry) Get(name string) (DecodeFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("schema %q: %w", name, domain.ErrSchemaNotFound)
	}
	return fn, nil
}

// schemaDescriptions are the JSON shapes substituted into prompt
// templates at the {FIELD_SCHEMA} placeholder.
var schemaDescriptions = map[string]string{
	SchemaDefault: `{"result": [{"name": "<field name>", "content": "<extracted value>", "justification": "<why>", "citation": "<verbatim source text>", "references": ["d<doc>:<page>:<element>[:<row>]"]}]}`,
	SchemaComposite: `{"result": [{"<sub_field>": {"name": "<field name>", "content": "<extracted value>", "justification": "<why>", "citation": "<verbatim source text>", "references": ["d<doc>:<page>:<element>[:<row>]"]}}]}`,
	SchemaSplitClassify: `{"result": [{"document_type": "<type>", "page_numbers": [<page numbers>]}]}`,
	SchemaReferenceInference: `{"result": [{"field_path": "<dot.path>", "citation": "<verbatim source text>", "justification": "<why>", "references": ["d<doc>:<page>:<element>[:<row>]"]}]}`,
}

// Description returns the prompt-facing JSON shape for a schema, or an
// empty string for schemas without one.
func Description(name string) string {
	return schemaDescriptions[name]
}

func decodeStrict(raw string, dst interface{}) error {
	dec := json.NewDecoder(strings.NewReader(stripFences(raw)))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// stripFences removes a surrounding markdown code fence, which some
// models emit around JSON despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
