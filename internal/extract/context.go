// Package extract implements the field extraction pipeline: context
// building, orchestration across field groups, and enrichment of raw
// LLM output with resolved source references.
package extract

import (
	"fmt"
	"sort"
	"strings"

	"docsift/internal/domain"
)

// FieldInput is a resolved dependency value for a field, looked up from
// previously extracted results.
type FieldInput struct {
	FieldName    string
	DocumentType string
	Content      string
	Found        bool
}

// FieldsToQuery concatenates field names, descriptions, and instructions
// into a retriever query string.
func FieldsToQuery(fields []domain.FieldDefinition) string {
	var parts []string
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Description))
		if f.Prompt != "" {
			parts = append(parts, f.Prompt)
		}
	}
	return strings.Join(parts, " ")
}

// BuildContext renders retrieved pages into the LLM context string and
// returns the short-to-long document ID mapping used to resolve
// reference tokens afterwards. Short IDs are assigned in first-seen
// order; pages render grouped by document, sorted by page number.
func BuildContext(pages []domain.DocumentPage, mode domain.ContentMode) (string, map[string]string) {
	if len(pages) == 0 {
		return "", map[string]string{}
	}

	var docOrder []string
	longToShort := make(map[string]string)
	pagesByDoc := make(map[string][]domain.DocumentPage)
	for _, p := range pages {
		if _, seen := longToShort[p.DocumentID]; !seen {
			docOrder = append(docOrder, p.DocumentID)
			longToShort[p.DocumentID] = fmt.Sprintf("%d", len(docOrder))
		}
		pagesByDoc[p.DocumentID] = append(pagesByDoc[p.DocumentID], p)
	}

	shortToLong := make(map[string]string, len(longToShort))
	for long, short := range longToShort {
		shortToLong[short] = long
	}

	var b strings.Builder
	for _, docID := range docOrder {
		fmt.Fprintf(&b, "# Document d%s\n", longToShort[docID])

		docPages := pagesByDoc[docID]
		sort.Slice(docPages, func(i, j int) bool {
			return docPages[i].PageNumber < docPages[j].PageNumber
		})
		for _, p := range docPages {
			fmt.Fprintf(&b, "## Page %d\n", p.PageNumber)
			b.WriteString(pageContent(p, mode))
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSuffix(b.String(), "\n"), shortToLong
}

// pageContent selects the page representation for a content mode, falling
// back through richer representations to plain content.
func pageContent(p domain.DocumentPage, mode domain.ContentMode) string {
	if mode == domain.ContentModeHTML {
		if p.ContentHTML != "" {
			return p.ContentHTML
		}
	}
	if p.ContentMarkdown != "" {
		return p.ContentMarkdown
	}
	return p.Content
}

// FormatFields renders field definitions into the {fields} prompt block.
func FormatFields(fields []domain.FieldDefinition) string {
	var parts []string
	for _, f := range fields {
		entry := fmt.Sprintf("- **%s**: %s", f.Name, f.Description)
		if f.Prompt != "" {
			entry += "\n  Instructions: " + strings.TrimSpace(f.Prompt)
		}
		if len(f.ValueList) > 0 {
			var options []string
			for _, opt := range f.ValueList {
				if opt.Prompt != "" {
					options = append(options, fmt.Sprintf("%s (%s)", opt.Name, opt.Prompt))
				} else {
					options = append(options, opt.Name)
				}
			}
			entry += "\n  Allowed values: " + strings.Join(options, ", ")
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, "\n")
}

// FormatFieldInputs appends previously extracted dependency values to the
// fields block.
func FormatFieldInputs(inputs []FieldInput) string {
	if len(inputs) == 0 {
		return ""
	}
	var parts []string
	parts = append(parts, "Previously extracted values:")
	for _, in := range inputs {
		content := in.Content
		if !in.Found {
			content = "(not available)"
		}
		parts = append(parts, fmt.Sprintf("- %s: %s", in.FieldName, content))
	}
	return strings.Join(parts, "\n")
}
