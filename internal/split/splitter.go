// Package split implements document splitting and classification: pages
// are classified in overlapping batches and the per-batch results are
// merged by centrality into contiguous typed segments.
package split

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docsift/internal/domain"
	"docsift/internal/extract"
	"docsift/internal/extractcfg"
	"docsift/internal/llm"
	"docsift/internal/port"
)

// Invoker issues one validated LLM call. Satisfied by llm.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, in port.CompletionInput, schema string, retries int) (interface{}, error)
}

// Service runs split/classify over a document.
type Service struct {
	loader      *extractcfg.Loader
	invoker     Invoker
	docs        port.DocumentRepository
	pages       port.PageRepository
	concurrency int
}

// NewService creates the split service. concurrency bounds how many
// classification batches run at once.
func NewService(loader *extractcfg.Loader, invoker Invoker, docs port.DocumentRepository, pages port.PageRepository, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		loader:      loader,
		invoker:     invoker,
		docs:        docs,
		pages:       pages,
		concurrency: concurrency,
	}
}

// batch is an inclusive 1-based page range handed to one LLM call.
type batch struct {
	num   int
	first int
	last  int
}

// planBatches slices total pages into overlapping windows. The step is
// batch_size minus overlap; once the remaining tail fits within
// batch_size plus overlap the final batch extends to the last page, so
// 25 pages at size 10 / overlap 3 yield [1-10], [8-17], [15-25].
func planBatches(total, batchSize, overlap int) []batch {
	if total <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= batchSize {
		overlap = batchSize - 1
	}
	step := batchSize - overlap
	if step < 1 {
		step = 1
	}

	var out []batch
	for start, num := 1, 1; start <= total; start, num = start+step, num+1 {
		remaining := total - start + 1
		if remaining <= batchSize+overlap {
			out = append(out, batch{num: num, first: start, last: total})
			break
		}
		out = append(out, batch{num: num, first: start, last: start + batchSize - 1})
	}
	return out
}

// assignment is one batch's classification of one page.
type assignment struct {
	docType  string
	score    int
	batchNum int
}

// centrality scores a page by its distance from the nearer edge of its
// batch. Central pages beat edge pages when overlapping batches disagree.
func centrality(page int, b batch) int {
	left := page - b.first
	right := b.last - page
	if left < right {
		return left
	}
	return right
}

// Split classifies a document's pages into typed sub-documents. Matching
// file and config hashes skip the LLM entirely unless Force is set.
func (s *Service) Split(ctx context.Context, req domain.SplitRequest) (*domain.SplitClassifyResult, error) {
	if req.CaseType == "" {
		req.CaseType = domain.CaseTypeGeneric
	}

	doc, err := s.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", req.DocumentID, err)
	}

	pc, configHash, err := s.loader.SplitClassifyPrompt(req.CaseType, req.PromptName)
	if err != nil {
		return nil, err
	}

	if !req.Force && splitCurrent(doc, req.CaseType, configHash) {
		log.Printf("split.Service: document %s already split with matching hashes, skipping", doc.ID)
		return resultFromStored(doc), nil
	}

	pages, err := s.pages.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading pages for %s: %w", doc.ID, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNoPages)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })

	total := pages[len(pages)-1].PageNumber
	batches := planBatches(total, pc.BatchSize, pc.OverlapFactor)

	pagesByNumber := make(map[int]*domain.DocumentPage, len(pages))
	for i := range pages {
		pagesByNumber[pages[i].PageNumber] = &pages[i]
	}

	batchSegments := make([][]domain.SplitSegment, len(batches))
	batchErrs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	var mu sync.Mutex
	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			segs, err := s.classifyBatch(gctx, pc, pages, b, len(batches))
			mu.Lock()
			batchSegments[i], batchErrs[i] = segs, err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := mergeBatches(batches, batchSegments, batchErrs, total)
	result.SubDocuments = buildSubDocuments(doc.ID, req.CaseType, result.Segments, pagesByNumber)

	var meta *domain.SplitMeta
	if len(result.BatchErrors) == 0 {
		meta = &domain.SplitMeta{
			FileSHA256:  doc.FileSHA256,
			ConfigHash:  configHash,
			CaseType:    req.CaseType,
			CompletedAt: time.Now().UTC(),
		}
	}
	if err := s.docs.UpdateSubDocuments(ctx, doc.ID, result.SubDocuments, meta); err != nil {
		return nil, fmt.Errorf("saving subdocuments for %s: %w", doc.ID, err)
	}

	return result, nil
}

func splitCurrent(doc *domain.Document, caseType, configHash string) bool {
	m := doc.SplitMeta
	return m != nil &&
		m.FileSHA256 == doc.FileSHA256 &&
		m.ConfigHash == configHash &&
		m.CaseType == caseType
}

// resultFromStored rebuilds a SplitClassifyResult from the persisted
// sub-documents.
func resultFromStored(doc *domain.Document) *domain.SplitClassifyResult {
	out := &domain.SplitClassifyResult{SubDocuments: doc.SubDocuments}
	for _, sub := range doc.SubDocuments {
		seg := domain.SplitSegment{DocumentType: sub.DocumentType}
		for _, pr := range sub.PageRefs {
			seg.PageNumbers = append(seg.PageNumbers, pr.PageNumber)
		}
		out.Segments = append(out.Segments, seg)
	}
	return out
}

// classifyBatch sends one window of pages to the LLM.
func (s *Service) classifyBatch(ctx context.Context, pc *domain.PromptConfig, pages []domain.DocumentPage, b batch, totalBatches int) ([]domain.SplitSegment, error) {
	var window []domain.DocumentPage
	for _, p := range pages {
		if p.PageNumber >= b.first && p.PageNumber <= b.last {
			window = append(window, p)
		}
	}

	contextStr, _ := extract.BuildContext(window, pc.ContentMode)

	sysPrompt := pc.SysPromptTemplate
	if strings.Contains(sysPrompt, "{FIELD_SCHEMA}") {
		sysPrompt = strings.ReplaceAll(sysPrompt, "{FIELD_SCHEMA}", llm.Description(llm.SchemaSplitClassify))
	}
	userPrompt := strings.ReplaceAll(pc.UserPromptTemplate, "{context}", contextStr)
	userPrompt = strings.ReplaceAll(userPrompt, "{batch_num}", strconv.Itoa(b.num))
	userPrompt = strings.ReplaceAll(userPrompt, "{total_batches}", strconv.Itoa(totalBatches))

	retries := pc.ValidationRetries
	if retries == 0 {
		retries = -1
	}
	out, err := s.invoker.Invoke(ctx, port.CompletionInput{
		Model:   pc.Model,
		System:  sysPrompt,
		User:    userPrompt,
		Options: pc.LLMKwargs,
	}, llm.SchemaSplitClassify, retries)
	if err != nil {
		return nil, err
	}
	return out.(*domain.LLMSplitBatchResult).Result, nil
}

// mergeBatches resolves overlapping classifications by centrality, then
// coalesces consecutive same-type pages into segments. Pages only failed
// batches covered surface as gaps.
func mergeBatches(batches []batch, batchSegments [][]domain.SplitSegment, batchErrs []error, total int) *domain.SplitClassifyResult {
	out := &domain.SplitClassifyResult{}

	assigned := make(map[int]assignment)
	for i, b := range batches {
		if batchErrs[i] != nil {
			out.BatchErrors = append(out.BatchErrors, domain.BatchError{
				BatchNum: b.num,
				Pages:    domain.PageSpan{First: b.first, Last: b.last},
				Error:    batchErrs[i].Error(),
			})
			continue
		}
		for _, seg := range batchSegments[i] {
			for _, page := range seg.PageNumbers {
				if page < b.first || page > b.last {
					log.Printf("split.mergeBatches: batch %d classified out-of-range page %d, dropping", b.num, page)
					continue
				}
				score := centrality(page, b)
				prev, ok := assigned[page]
				// Higher centrality wins; ties keep the earlier batch.
				if !ok || score > prev.score {
					assigned[page] = assignment{docType: seg.DocumentType, score: score, batchNum: b.num}
				}
			}
		}
	}

	var current *domain.SplitSegment
	flush := func() {
		if current != nil {
			out.Segments = append(out.Segments, *current)
			current = nil
		}
	}
	gapStart := 0
	flushGap := func(end int) {
		if gapStart > 0 {
			out.Gaps = append(out.Gaps, domain.PageSpan{First: gapStart, Last: end})
			gapStart = 0
		}
	}
	for page := 1; page <= total; page++ {
		a, ok := assigned[page]
		if !ok {
			flush()
			if gapStart == 0 {
				gapStart = page
			}
			continue
		}
		flushGap(page - 1)
		if current == nil || current.DocumentType != a.docType {
			flush()
			current = &domain.SplitSegment{DocumentType: a.docType}
		}
		current.PageNumbers = append(current.PageNumbers, page)
	}
	flush()
	flushGap(total)

	return out
}

// buildSubDocuments turns merged segments into persistable sub-documents
// with deterministic IDs, so re-splitting the same document overwrites.
func buildSubDocuments(docID, caseType string, segments []domain.SplitSegment, pagesByNumber map[int]*domain.DocumentPage) domain.SubDocumentList {
	now := time.Now().UTC()
	var out domain.SubDocumentList
	for _, seg := range segments {
		sub := domain.SubDocument{
			ID:           domain.CompositeID(docID, caseType, seg.DocumentType, strconv.Itoa(seg.PageNumbers[0])),
			CaseType:     caseType,
			DocumentType: seg.DocumentType,
			CreatedAt:    now,
		}
		for _, page := range seg.PageNumbers {
			ref := domain.SubDocumentPageRef{DocumentID: docID, PageNumber: page}
			if p := pagesByNumber[page]; p != nil {
				ref.PageID = p.ID
			}
			sub.PageRefs = append(sub.PageRefs, ref)
		}
		out = append(out, sub)
	}
	return out
}
