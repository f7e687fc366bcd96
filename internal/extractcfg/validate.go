package extractcfg

import (
	"log"
	"strings"

	"docsift/internal/domain"
)

// ValidatePromptTemplates checks that the user template carries the
// placeholders the extractor substitutes. Missing placeholders are
// logged, not fatal, since some prompts legitimately inline their fields.
func ValidatePromptTemplates(pc *domain.PromptConfig) bool {
	ok := true
	for _, placeholder := range []string{"{fields}", "{context}"} {
		if !strings.Contains(pc.UserPromptTemplate, placeholder) {
			log.Printf("extractcfg.ValidatePromptTemplates: prompt %q missing %s in user template",
				pc.Name, placeholder)
			ok = false
		}
	}
	return ok
}

// ValidateFieldConsistency rejects field sets whose dependency inputs
// name fields absent from the set without a cross-document-type
// qualifier.
func ValidateFieldConsistency(caseType, documentType string, fields []domain.FieldDefinition) error {
	names := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		names[f.Name] = struct{}{}
	}

	var missing []string
	for _, f := range fields {
		for _, req := range f.Inputs {
			if req.DocumentType != "" {
				continue
			}
			if _, ok := names[req.FieldName]; !ok {
				missing = append(missing, req.FieldName)
			}
		}
	}
	if len(missing) > 0 {
		return &domain.FieldConsistencyError{
			CaseType:     caseType,
			DocumentType: documentType,
			Missing:      missing,
		}
	}
	return nil
}
