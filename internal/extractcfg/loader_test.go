package extractcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsift/internal/domain"
)

func writeYAML(t *testing.T, root string, rel string, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const invoiceFields = `fields:
  - name: vendor_name
    description: Name of the vendor
    data_type: string
    group: 0
  - name: total_amount
    description: Invoice total
    data_type: currency
    group: 1
    inputs:
      - field_name: vendor_name
`

const mainPrompt = `name: main
case_type: generic
document_type: invoice
output_schema: default
sys_prompt_template: "You extract fields."
user_prompt_template: "{fields}\n{context}"
model: gpt-4o
validation_retries: 2
content_mode: markdown
reference_granularity: full
`

const group1Prompt = `name: totals
case_type: generic
document_type: invoice
groups: [1]
output_schema: default
sys_prompt_template: "You extract totals."
user_prompt_template: "{fields}\n{context}"
model: gpt-4o
content_mode: markdown
reference_granularity: page
`

const splitPrompt = `name: main
case_type: generic
output_schema: split_classify
sys_prompt_template: "You classify pages."
user_prompt_template: "{context}"
model: gpt-4o
batch_size: 10
overlap_factor: 3
`

func TestFieldsLoadsAndFallsBackToGeneric(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, "generic/invoice/fields/core.yaml", invoiceFields)

	l := NewLoader(root)

	fields, err := l.Fields("litigation", "invoice")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "vendor_name", fields[0].Name)
	assert.Equal(t, domain.DataTypeCurrency, fields[1].DataType)
	assert.Equal(t, 1, fields[1].Group)
	require.Len(t, fields[1].Inputs, 1)
	assert.Equal(t, "vendor_name", fields[1].Inputs[0].FieldName)
}

func TestFieldsMissingDirectoryReturnsEmpty(t *testing.T) {
	l := NewLoader(t.TempDir())
	fields, err := l.Fields("generic", "invoice")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFieldGroups(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, "generic/invoice/fields/core.yaml", invoiceFields)

	groups, err := NewLoader(root).FieldGroups("generic", "invoice")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
	assert.Len(t, groups[1], 1)
}

func TestPromptResolutionOrder(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, "generic/invoice/prompts/main.yaml", mainPrompt)
	writeYAML(t, root, "generic/invoice/prompts/totals.yaml", group1Prompt)

	l := NewLoader(root)

	pc, err := l.Prompt("generic", "invoice", 1)
	require.NoError(t, err)
	assert.Equal(t, "totals", pc.Name)
	assert.Equal(t, domain.GranularityPage, pc.Granularity)

	pc, err = l.Prompt("generic", "invoice", 5)
	require.NoError(t, err)
	assert.Equal(t, "main", pc.Name, "unmatched group falls back to default prompt")

	pc, err = l.Prompt("generic", "invoice", 0)
	require.NoError(t, err)
	assert.Equal(t, "main", pc.Name)
}

func TestPromptSoleConfigFallback(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, "generic/invoice/prompts/totals.yaml", group1Prompt)

	pc, err := NewLoader(root).Prompt("generic", "invoice", 3)
	require.NoError(t, err)
	assert.Equal(t, "totals", pc.Name)
}

func TestPromptNotFound(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Prompt("generic", "invoice", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestSplitClassifyPromptFallbackAndHash(t *testing.T) {
	root := t.TempDir()
	writeYAML(t, root, "generic/split_classify/prompts/main.yaml", splitPrompt)

	l := NewLoader(root)

	pc, hash, err := l.SplitClassifyPrompt("litigation", "")
	require.NoError(t, err)
	assert.Equal(t, 10, pc.BatchSize)
	assert.Equal(t, 3, pc.OverlapFactor)
	assert.Len(t, hash, 64)

	_, hash2, err := l.SplitClassifyPrompt("generic", "main")
	require.NoError(t, err)
	assert.Equal(t, hash, hash2, "same file content hashes identically")

	_, _, err = l.SplitClassifyPrompt("generic", "missing")
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestValidatePromptTemplates(t *testing.T) {
	ok := ValidatePromptTemplates(&domain.PromptConfig{
		Name:               "p",
		UserPromptTemplate: "{fields} then {context}",
	})
	assert.True(t, ok)

	ok = ValidatePromptTemplates(&domain.PromptConfig{
		Name:               "p",
		UserPromptTemplate: "{context} only",
	})
	assert.False(t, ok)
}

func TestValidateFieldConsistency(t *testing.T) {
	fields := []domain.FieldDefinition{
		{Name: "a"},
		{Name: "b", Inputs: []domain.FieldRequirement{{FieldName: "a"}}},
	}
	require.NoError(t, ValidateFieldConsistency("generic", "invoice", fields))

	fields = append(fields, domain.FieldDefinition{
		Name:   "c",
		Inputs: []domain.FieldRequirement{{FieldName: "ghost"}},
	})
	err := ValidateFieldConsistency("generic", "invoice", fields)
	require.Error(t, err)
	var fce *domain.FieldConsistencyError
	require.ErrorAs(t, err, &fce)
	assert.Equal(t, []string{"ghost"}, fce.Missing)

	// A cross-document-type qualifier exempts the dependency.
	fields[2].Inputs[0].DocumentType = "receipt"
	require.NoError(t, ValidateFieldConsistency("generic", "invoice", fields))
}
