package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"docsift/internal/domain"
	"docsift/internal/extractcfg"
	"docsift/internal/llm"
	"docsift/internal/port"
)

// Invoker issues one validated LLM call. Satisfied by llm.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, in port.CompletionInput, schema string, retries int) (interface{}, error)
}

// Service is the extraction orchestrator.
type Service struct {
	loader       *extractcfg.Loader
	invoker      Invoker
	enricher     *Enricher
	retrievers   port.RetrieverFactory
	docs         port.DocumentRepository
	cases        port.CaseRepository
	fieldResults port.FieldResultRepository
	concurrency  int
}

// NewService creates the extraction service. concurrency bounds how many
// field groups run LLM calls at once.
func NewService(
	loader *extractcfg.Loader,
	invoker Invoker,
	enricher *Enricher,
	retrievers port.RetrieverFactory,
	docs port.DocumentRepository,
	cases port.CaseRepository,
	fieldResults port.FieldResultRepository,
	concurrency int,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		loader:       loader,
		invoker:      invoker,
		enricher:     enricher,
		retrievers:   retrievers,
		docs:         docs,
		cases:        cases,
		fieldResults: fieldResults,
		concurrency:  concurrency,
	}
}

type groupResult struct {
	fields      map[string]domain.FieldResult
	composite   map[string][]map[string]domain.FieldResult
	direct      json.RawMessage
	refs        []domain.FieldReference
	model       string
	granularity domain.ReferenceGranularity
	err         error
}

// Extract resolves configuration, runs each field group through the
// retrieve/context/LLM/enrich pipeline, and merges the results. A failed
// group surfaces in GroupErrors without discarding the others.
func (s *Service) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, fmt.Errorf("document_ids required: %w", domain.ErrInvalidInput)
	}
	if req.Mode == "" {
		req.Mode = domain.ModeReferenced
	}
	if req.CaseType == "" {
		req.CaseType = domain.CaseTypeGeneric
	}

	caseType, err := s.resolveCaseType(ctx, &req)
	if err != nil {
		return nil, err
	}
	documentType := req.DocumentType
	pageIDs := req.PageIDs

	if req.SubDocumentID != "" {
		caseType, documentType, pageIDs, err = s.resolveSubDocument(ctx, &req, caseType, documentType, pageIDs)
		if err != nil {
			return nil, err
		}
	}

	fields, err := s.loader.Fields(caseType, documentType)
	if err != nil {
		return nil, err
	}
	fields = applyOverrides(fields, req.FieldOverrides)
	fields = filterFields(fields, req.Fields)

	groups := make(map[int][]domain.FieldDefinition)
	for _, f := range fields {
		groups[f.Group] = append(groups[f.Group], f)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no fields configured for %s/%s: %w", caseType, documentType, domain.ErrConfigNotFound)
	}

	prompts := make(map[int]*domain.PromptConfig, len(groups))
	for groupID := range groups {
		pc, err := s.loader.Prompt(caseType, documentType, groupID)
		if err != nil {
			return nil, err
		}
		extractcfg.ValidatePromptTemplates(pc)
		prompts[groupID] = pc
	}
	if err := extractcfg.ValidateFieldConsistency(caseType, documentType, fields); err != nil {
		return nil, err
	}

	results := s.runGroups(ctx, &req, caseType, documentType, pageIDs, groups, prompts)

	resp := &domain.ExtractionResponse{
		DocumentID:    req.DocumentIDs[0],
		DocumentType:  documentType,
		CaseType:      caseType,
		SubDocumentID: req.SubDocumentID,
		Mode:          req.Mode,
		Results:       make(map[string]domain.FieldResult),
		Granularity:   req.Granularity,
	}

	groupIDs := sortedKeys(results)
	for _, groupID := range groupIDs {
		res := results[groupID]
		if res.model != "" {
			resp.ModelUsed = res.model
		}
		// Report the granularity that was actually applied, which may
		// come from the prompt config rather than the request.
		if res.granularity != "" {
			resp.Granularity = res.granularity
		}
		if res.err != nil {
			resp.GroupErrors = append(resp.GroupErrors, domain.GroupError{
				Group: groupID,
				Error: res.err.Error(),
			})
			continue
		}
		for name, fr := range res.fields {
			if _, dup := resp.Results[name]; dup {
				resp.GroupErrors = append(resp.GroupErrors, domain.GroupError{
					Group: groupID,
					Error: fmt.Sprintf("field %q: %v", name, domain.ErrDuplicateField),
				})
				continue
			}
			resp.Results[name] = fr
		}
		for parent, items := range res.composite {
			if resp.CompositeResults == nil {
				resp.CompositeResults = make(map[string][]map[string]domain.FieldResult)
			}
			resp.CompositeResults[parent] = append(resp.CompositeResults[parent], items...)
		}
		if res.direct != nil {
			resp.Direct = res.direct
		}
		resp.FieldReferences = append(resp.FieldReferences, res.refs...)
	}

	return resp, nil
}

func (s *Service) resolveCaseType(ctx context.Context, req *domain.ExtractionRequest) (string, error) {
	if req.CaseID == "" {
		return req.CaseType, nil
	}
	c, err := s.cases.GetByID(ctx, req.CaseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCaseNotFound) {
			log.Printf("extract.Service: case %s not found, using request case type %q", req.CaseID, req.CaseType)
			return req.CaseType, nil
		}
		return "", fmt.Errorf("resolving case %s: %w", req.CaseID, err)
	}
	return c.Type, nil
}

// resolveSubDocument re-scopes document type, case type, and page IDs
// from a stored sub-document.
func (s *Service) resolveSubDocument(ctx context.Context, req *domain.ExtractionRequest, caseType, documentType string, pageIDs []string) (string, string, []string, error) {
	doc, err := s.docs.GetByID(ctx, req.DocumentIDs[0])
	if err != nil {
		return "", "", nil, fmt.Errorf("loading document %s: %w", req.DocumentIDs[0], err)
	}
	for _, sub := range doc.SubDocuments {
		if sub.ID != req.SubDocumentID {
			continue
		}
		scoped := make([]string, 0, len(sub.PageRefs))
		for _, pr := range sub.PageRefs {
			scoped = append(scoped, pr.PageID)
		}
		log.Printf("extract.Service: scoped to subdocument %s: type=%s, pages=%d",
			sub.ID, sub.DocumentType, len(scoped))
		return sub.CaseType, sub.DocumentType, scoped, nil
	}
	return "", "", nil, fmt.Errorf("subdocument %s on document %s: %w",
		req.SubDocumentID, doc.ID, domain.ErrNoSubDocument)
}

// runGroups schedules groups in dependency waves: a group whose fields
// declare inputs runs after the groups that produce those fields, so the
// persisted producer output is readable by the time it builds its prompt.
func (s *Service) runGroups(ctx context.Context, req *domain.ExtractionRequest, caseType, documentType string, pageIDs []string, groups map[int][]domain.FieldDefinition, prompts map[int]*domain.PromptConfig) map[int]*groupResult {
	producers := make(map[string]int)
	for groupID, fields := range groups {
		for _, f := range fields {
			producers[f.Name] = groupID
		}
	}
	deps := make(map[int]map[int]struct{})
	for groupID, fields := range groups {
		deps[groupID] = make(map[int]struct{})
		for _, f := range fields {
			for _, in := range f.Inputs {
				if p, ok := producers[in.FieldName]; ok && p != groupID {
					deps[groupID][p] = struct{}{}
				}
			}
		}
	}

	results := make(map[int]*groupResult, len(groups))
	var mu sync.Mutex
	done := make(map[int]bool)

	remaining := sortedKeys(groups)
	for len(remaining) > 0 {
		var wave, blocked []int
		for _, groupID := range remaining {
			ready := true
			for dep := range deps[groupID] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, groupID)
			} else {
				blocked = append(blocked, groupID)
			}
		}
		if len(wave) == 0 {
			// Dependency cycle between groups; run them anyway.
			log.Printf("extract.Service: dependency cycle across groups %v", blocked)
			wave, blocked = blocked, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, groupID := range wave {
			groupID := groupID
			fields := groups[groupID]
			pc := prompts[groupID]
			g.Go(func() error {
				res := s.runGroup(gctx, req, caseType, documentType, pageIDs, fields, pc)
				mu.Lock()
				results[groupID] = res
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		for _, groupID := range wave {
			done[groupID] = true
		}
		remaining = blocked
	}

	return results
}

// runGroup executes one group's pipeline. Persistence happens only after
// enrichment succeeds.
func (s *Service) runGroup(ctx context.Context, req *domain.ExtractionRequest, caseType, documentType string, pageIDs []string, fields []domain.FieldDefinition, pc *domain.PromptConfig) *groupResult {
	res := &groupResult{model: pc.Model}

	inputs, err := s.resolveFieldInputs(ctx, req, fields)
	if err != nil {
		res.err = err
		return res
	}

	contentMode := req.ContentMode
	if contentMode == "" {
		contentMode = pc.ContentMode
	}
	granularity := req.Granularity
	if granularity == "" {
		granularity = pc.Granularity
	}
	res.granularity = granularity

	var pages []domain.DocumentPage
	if pc.RetrieverConfig != nil {
		retriever, err := s.retrievers.Build(*pc.RetrieverConfig)
		if err != nil {
			res.err = err
			return res
		}
		pages, err = retriever.Retrieve(ctx, port.RetrieveInput{
			Query:       FieldsToQuery(fields),
			DocumentIDs: req.DocumentIDs,
			PageIDs:     pageIDs,
		})
		if err != nil {
			res.err = fmt.Errorf("retrieving pages: %w", err)
			return res
		}
	}

	contextStr, shortToLong := BuildContext(pages, contentMode)

	fieldsBlock := FormatFields(fields)
	if block := FormatFieldInputs(inputs); block != "" {
		fieldsBlock += "\n\n" + block
	}

	schemaName := pc.OutputSchema
	if req.OutputSchema != "" {
		schemaName = req.OutputSchema
	}
	if schemaName == "" {
		schemaName = llm.SchemaDefault
	}
	if req.Mode == domain.ModeDirect && schemaName == llm.SchemaDefault {
		schemaName = llm.SchemaDirect
	}

	sysPrompt := pc.SysPromptTemplate
	if strings.Contains(sysPrompt, "{FIELD_SCHEMA}") {
		sysPrompt = strings.ReplaceAll(sysPrompt, "{FIELD_SCHEMA}", llm.Description(schemaName))
	}
	userPrompt := strings.ReplaceAll(pc.UserPromptTemplate, "{fields}", fieldsBlock)
	userPrompt = strings.ReplaceAll(userPrompt, "{context}", contextStr)

	retries := pc.ValidationRetries
	if retries == 0 {
		retries = -1
	}
	out, err := s.invoker.Invoke(ctx, port.CompletionInput{
		Model:   pc.Model,
		System:  sysPrompt,
		User:    userPrompt,
		Options: pc.LLMKwargs,
	}, schemaName, retries)
	if err != nil {
		res.err = err
		return res
	}

	switch typed := out.(type) {
	case *domain.LLMFieldsResult:
		res.fields, err = s.enricher.EnrichFieldItems(ctx, typed.Result, shortToLong, granularity, pc.Model)
	case *domain.LLMCompositeResult:
		parent := compositeParentName(fields)
		var items []map[string]domain.FieldResult
		items, err = s.enricher.EnrichCompositeItems(ctx, typed.Result, shortToLong, granularity, pc.Model)
		if err == nil {
			res.composite = map[string][]map[string]domain.FieldResult{parent: items}
		}
	case json.RawMessage:
		res.direct = typed
		if req.InferReferences {
			res.refs, err = s.inferReferences(ctx, pc, typed, contextStr, shortToLong, granularity)
		}
	default:
		err = fmt.Errorf("schema %q produced unsupported result type %T", schemaName, out)
	}
	if err != nil {
		res.err = err
		return res
	}

	if err := s.persistGroup(ctx, req, caseType, documentType, res); err != nil {
		res.err = err
	}
	return res
}

// inferReferences runs the second pass of direct mode: the structured
// payload goes back to the model, which maps leaf field paths to
// reference tokens for the enricher to resolve.
func (s *Service) inferReferences(ctx context.Context, pc *domain.PromptConfig, payload json.RawMessage, contextStr string, shortToLong map[string]string, granularity domain.ReferenceGranularity) ([]domain.FieldReference, error) {
	sys := "You map each leaf field of an extracted JSON payload to the source elements it came from. " +
		"Respond with JSON matching: " + llm.Description(llm.SchemaReferenceInference)
	user := "Extracted payload:\n" + string(payload) + "\n\nSource context:\n" + contextStr

	retries := pc.ValidationRetries
	if retries == 0 {
		retries = -1
	}
	out, err := s.invoker.Invoke(ctx, port.CompletionInput{
		Model:   pc.Model,
		System:  sys,
		User:    user,
		Options: pc.LLMKwargs,
	}, llm.SchemaReferenceInference, retries)
	if err != nil {
		return nil, fmt.Errorf("inferring references: %w", err)
	}
	inferred := out.(*domain.ReferenceInferenceResult)
	return s.enricher.EnrichFieldRefItems(ctx, inferred.Result, shortToLong, granularity)
}

func (s *Service) resolveFieldInputs(ctx context.Context, req *domain.ExtractionRequest, fields []domain.FieldDefinition) ([]FieldInput, error) {
	docID := req.DocumentIDs[0]
	var inputs []FieldInput
	for _, f := range fields {
		for _, in := range f.Inputs {
			fi := FieldInput{FieldName: in.FieldName, DocumentType: in.DocumentType}
			rec, err := s.fieldResults.Get(ctx, docID, req.SubDocumentID, in.FieldName)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("loading dependency %s: %w", in.FieldName, err)
			}
			if rec != nil {
				fi.Content = rec.Result.Content
				fi.Found = true
			}
			inputs = append(inputs, fi)
		}
	}
	return inputs, nil
}

// persistGroup upserts the group's field results for every requested
// document. Composite items persist as one record per parent field.
func (s *Service) persistGroup(ctx context.Context, req *domain.ExtractionRequest, caseType, documentType string, res *groupResult) error {
	var recs []domain.FieldResultRecord
	for _, docID := range req.DocumentIDs {
		for name, fr := range res.fields {
			recs = append(recs, domain.FieldResultRecord{
				DocumentID:    docID,
				DocumentType:  documentType,
				SubDocumentID: req.SubDocumentID,
				CaseType:      caseType,
				FieldName:     name,
				Result:        fr,
			})
		}
		for parent, items := range res.composite {
			blob, err := json.Marshal(items)
			if err != nil {
				return fmt.Errorf("serializing composite results for %s: %w", parent, err)
			}
			recs = append(recs, domain.FieldResultRecord{
				DocumentID:    docID,
				DocumentType:  documentType,
				SubDocumentID: req.SubDocumentID,
				CaseType:      caseType,
				FieldName:     parent,
				Result:        domain.FieldResult{Content: string(blob), CreatedBy: res.model},
			})
		}
	}
	if len(recs) == 0 {
		return nil
	}
	if err := s.fieldResults.UpsertBatch(ctx, recs); err != nil {
		return fmt.Errorf("saving field results: %w", err)
	}
	return nil
}

// applyOverrides replaces definitions by name, appending overrides for
// names not already present.
func applyOverrides(fields, overrides []domain.FieldDefinition) []domain.FieldDefinition {
	if len(overrides) == 0 {
		return fields
	}
	overridden := make(map[string]struct{}, len(overrides))
	for _, o := range overrides {
		overridden[o.Name] = struct{}{}
	}
	out := make([]domain.FieldDefinition, 0, len(fields)+len(overrides))
	for _, f := range fields {
		if _, ok := overridden[f.Name]; !ok {
			out = append(out, f)
		}
	}
	return append(out, overrides...)
}

func filterFields(fields []domain.FieldDefinition, names []string) []domain.FieldDefinition {
	if len(names) == 0 {
		return fields
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	var out []domain.FieldDefinition
	for _, f := range fields {
		if _, ok := wanted[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// compositeParentName derives the composite parent from dot-notation
// field names, e.g. "line_items.quantity" yields "line_items".
func compositeParentName(fields []domain.FieldDefinition) string {
	for _, f := range fields {
		if i := strings.Index(f.Name, "."); i > 0 {
			return f.Name[:i]
		}
	}
	return "items"
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
