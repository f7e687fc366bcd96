package extract

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// refPattern matches reference tokens like "d1:3:p5" or "d1:3:t3:2"
// (document short ID, page number, element short ID, optional table row).
var refPattern = regexp.MustCompile(`^d(\d+):(\d+):([a-z]+\d+)(?::(\d+))?$`)

type parsedRef struct {
	DocShortID     string
	PageNumber     int
	ElementShortID string
	RowNumber      int
	HasRow         bool
}

func parseReference(ref string) (*parsedRef, bool) {
	m := refPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return nil, false
	}
	pageNum, _ := strconv.Atoi(m[2])
	out := &parsedRef{
		DocShortID:     m[1],
		PageNumber:     pageNum,
		ElementShortID: m[3],
	}
	if m[4] != "" {
		out.RowNumber, _ = strconv.Atoi(m[4])
		out.HasRow = true
	}
	return out, true
}

// UnionPolygon computes the bounding rectangle of a set of flat polygons
// as the 8-point ring [minX,minY, maxX,minY, maxX,maxY, minX,maxY].
func UnionPolygon(polygons [][]float64) []float64 {
	first := true
	var minX, minY, maxX, maxY float64
	for _, poly := range polygons {
		for i := 0; i+1 < len(poly); i += 2 {
			x, y := poly[i], poly[i+1]
			if first {
				minX, maxX, minY, maxY = x, x, y, y
				first = false
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if first {
		return nil
	}
	return []float64{minX, minY, maxX, minY, maxX, maxY, minX, maxY}
}

// elementPolygon resolves the polygon for an element. Table references
// with a row number union that row's cell regions; key-value pairs union
// their key and value regions.
func elementPolygon(elem *domain.DocumentElement, rowNumber int, hasRow bool) []float64 {
	if hasRow {
		var rowPolys [][]float64
		for _, cell := range elem.Cells {
			if cell.RowIndex != rowNumber {
				continue
			}
			for _, region := range cell.BoundingRegions {
				if len(region.Polygon) > 0 {
					rowPolys = append(rowPolys, region.Polygon)
				}
			}
		}
		if len(rowPolys) > 0 {
			return UnionPolygon(rowPolys)
		}
	}

	if len(elem.BoundingRegions) > 0 {
		var polys [][]float64
		for _, region := range elem.BoundingRegions {
			if len(region.Polygon) > 0 {
				polys = append(polys, region.Polygon)
			}
		}
		if len(polys) > 0 {
			return UnionPolygon(polys)
		}
	}

	var kvPolys [][]float64
	for _, part := range []*domain.KeyValuePart{elem.Key, elem.Value} {
		if part == nil {
			continue
		}
		for _, region := range part.BoundingRegions {
			if len(region.Polygon) > 0 {
				kvPolys = append(kvPolys, region.Polygon)
			}
		}
	}
	if len(kvPolys) > 0 {
		return UnionPolygon(kvPolys)
	}
	return nil
}

// Enricher resolves reference tokens against stored documents and pages.
type Enricher struct {
	docs  port.DocumentRepository
	pages port.PageRepository
}

// NewEnricher creates an Enricher over the given repositories.
func NewEnricher(docs port.DocumentRepository, pages port.PageRepository) *Enricher {
	return &Enricher{docs: docs, pages: pages}
}

// refContext caches per-call lookups so a batch of references fetches
// each document and page list once.
type refContext struct {
	shortToLong map[string]string
	docsByID    map[string]*domain.Document
	pagesByDoc  map[string]map[int]*domain.DocumentPage
}

func (e *Enricher) buildRefContext(ctx context.Context, shortToLong map[string]string) (*refContext, error) {
	rc := &refContext{
		shortToLong: shortToLong,
		docsByID:    make(map[string]*domain.Document),
		pagesByDoc:  make(map[string]map[int]*domain.DocumentPage),
	}

	var ids []string
	for _, long := range shortToLong {
		ids = append(ids, long)
	}
	if len(ids) == 0 {
		return rc, nil
	}

	docs, err := e.docs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching referenced documents: %w", err)
	}
	for i := range docs {
		rc.docsByID[docs[i].ID] = &docs[i]
	}
	return rc, nil
}

func (rc *refContext) page(ctx context.Context, e *Enricher, docID string, pageNumber int) *domain.DocumentPage {
	byNum, ok := rc.pagesByDoc[docID]
	if !ok {
		byNum = make(map[int]*domain.DocumentPage)
		pages, err := e.pages.ListByDocument(ctx, docID)
		if err != nil {
			log.Printf("extract.Enricher: listing pages for %s: %v", docID, err)
		}
		for i := range pages {
			byNum[pages[i].PageNumber] = &pages[i]
		}
		rc.pagesByDoc[docID] = byNum
	}
	return byNum[pageNumber]
}

// resolveReference resolves one token to a full Reference. Malformed or
// unresolvable tokens return nil after a log line.
func (e *Enricher) resolveReference(ctx context.Context, rc *refContext, ref string) *domain.Reference {
	parsed, ok := parseReference(ref)
	if !ok {
		log.Printf("extract.Enricher: could not parse reference %q", ref)
		return nil
	}

	docID, ok := rc.shortToLong[parsed.DocShortID]
	if !ok {
		log.Printf("extract.Enricher: unknown document short ID d%s", parsed.DocShortID)
		return nil
	}
	doc, ok := rc.docsByID[docID]
	if !ok {
		log.Printf("extract.Enricher: document not found: %s", docID)
		return nil
	}

	var elem *domain.DocumentElement
	for i := range doc.Elements {
		if doc.Elements[i].ShortID == parsed.ElementShortID && doc.Elements[i].PageNumber == parsed.PageNumber {
			elem = &doc.Elements[i]
			break
		}
	}
	if elem == nil {
		log.Printf("extract.Enricher: element %s not found on page %d of document %s",
			parsed.ElementShortID, parsed.PageNumber, docID)
		return nil
	}

	out := &domain.Reference{
		DocumentID:     docID,
		PageNumber:     parsed.PageNumber,
		PageUnit:       "inch",
		ElementType:    elem.Type,
		ElementShortID: parsed.ElementShortID,
		Polygon:        elementPolygon(elem, parsed.RowNumber, parsed.HasRow),
		LLMReference:   ref,
	}
	if page := rc.page(ctx, e, docID, parsed.PageNumber); page != nil {
		out.PageID = page.ID
		out.PageWidth = page.Width
		out.PageHeight = page.Height
		if page.Unit != "" {
			out.PageUnit = page.Unit
		}
	}
	return out
}

// resolvePageReference resolves one token at page granularity.
func (e *Enricher) resolvePageReference(ctx context.Context, rc *refContext, ref string) *domain.PageReference {
	parsed, ok := parseReference(ref)
	if !ok {
		log.Printf("extract.Enricher: could not parse reference %q", ref)
		return nil
	}
	docID, ok := rc.shortToLong[parsed.DocShortID]
	if !ok {
		return nil
	}
	page := rc.page(ctx, e, docID, parsed.PageNumber)
	if page == nil {
		return nil
	}
	return &domain.PageReference{
		DocumentID: docID,
		PageID:     page.ID,
		PageNumber: parsed.PageNumber,
	}
}

func (e *Enricher) resolveItemReferences(ctx context.Context, rc *refContext, refs []string, granularity domain.ReferenceGranularity) ([]domain.Reference, []domain.PageReference) {
	switch granularity {
	case domain.GranularityFull:
		var out []domain.Reference
		for _, ref := range refs {
			if r := e.resolveReference(ctx, rc, ref); r != nil {
				out = append(out, *r)
			}
		}
		return out, nil
	case domain.GranularityPage:
		var out []domain.PageReference
		seen := make(map[string]struct{})
		for _, ref := range refs {
			pr := e.resolvePageReference(ctx, rc, ref)
			if pr == nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", pr.DocumentID, pr.PageNumber)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, *pr)
		}
		return nil, out
	default:
		return nil, nil
	}
}

func itemToResult(item domain.LLMFieldItem, modelName string, refs []domain.Reference, pageRefs []domain.PageReference) domain.FieldResult {
	now := time.Now().UTC()
	return domain.FieldResult{
		Content:        item.Content,
		Justification:  item.Justification,
		Citation:       item.Citation,
		References:     refs,
		PageReferences: pageRefs,
		CreatedBy:      modelName,
		CreatedAt:      &now,
	}
}

// EnrichFieldItems converts raw LLM field items into FieldResults with
// references resolved per the configured granularity.
func (e *Enricher) EnrichFieldItems(ctx context.Context, items []domain.LLMFieldItem, shortToLong map[string]string, granularity domain.ReferenceGranularity, modelName string) (map[string]domain.FieldResult, error) {
	results := make(map[string]domain.FieldResult, len(items))

	if granularity == domain.GranularityNone {
		for _, item := range items {
			results[item.Name] = itemToResult(item, modelName, nil, nil)
		}
		return results, nil
	}

	rc, err := e.buildRefContext(ctx, shortToLong)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		refs, pageRefs := e.resolveItemReferences(ctx, rc, item.References, granularity)
		results[item.Name] = itemToResult(item, modelName, refs, pageRefs)
	}
	return results, nil
}

// EnrichCompositeItems converts composite-schema items (sub-field name to
// LLMFieldItem maps) into FieldResult maps, one per item.
func (e *Enricher) EnrichCompositeItems(ctx context.Context, items []map[string]domain.LLMFieldItem, shortToLong map[string]string, granularity domain.ReferenceGranularity, modelName string) ([]map[string]domain.FieldResult, error) {
	var rc *refContext
	if granularity != domain.GranularityNone {
		var err error
		rc, err = e.buildRefContext(ctx, shortToLong)
		if err != nil {
			return nil, err
		}
	}

	out := make([]map[string]domain.FieldResult, 0, len(items))
	for _, item := range items {
		itemResults := make(map[string]domain.FieldResult, len(item))
		for subField, fi := range item {
			var refs []domain.Reference
			var pageRefs []domain.PageReference
			if rc != nil {
				refs, pageRefs = e.resolveItemReferences(ctx, rc, fi.References, granularity)
			}
			itemResults[subField] = itemToResult(fi, modelName, refs, pageRefs)
		}
		out = append(out, itemResults)
	}
	return out, nil
}

// EnrichFieldRefItems resolves reference inference output into
// FieldReference annotations keyed by field path.
func (e *Enricher) EnrichFieldRefItems(ctx context.Context, items []domain.LLMFieldRefItem, shortToLong map[string]string, granularity domain.ReferenceGranularity) ([]domain.FieldReference, error) {
	rc, err := e.buildRefContext(ctx, shortToLong)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FieldReference, 0, len(items))
	for _, item := range items {
		refs, pageRefs := e.resolveItemReferences(ctx, rc, item.References, granularity)
		out = append(out, domain.FieldReference{
			FieldPath:      item.FieldPath,
			Citation:       item.Citation,
			Justification:  item.Justification,
			References:     refs,
			PageReferences: pageRefs,
		})
	}
	return out, nil
}
