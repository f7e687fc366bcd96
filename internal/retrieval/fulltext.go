package retrieval

import (
	"context"
	"fmt"

	"docsift/internal/domain"
	"docsift/internal/port"
)

const defaultTopK = 5

// fullTextRetriever ranks pages by full-text relevance to the query.
type fullTextRetriever struct {
	pages port.PageRepository
	topK  int
}

func newFullTextRetriever(cfg domain.RetrieverConfig, deps Deps) (port.Retriever, error) {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &fullTextRetriever{pages: deps.Pages, topK: topK}, nil
}

func (r *fullTextRetriever) Retrieve(ctx context.Context, in port.RetrieveInput) ([]domain.DocumentPage, error) {
	pages, err := r.pages.SearchFullText(ctx, in.DocumentIDs, in.Query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	return filterByPageIDs(pages, in.PageIDs), nil
}

// filterByPageIDs keeps only the listed pages, preserving order. An
// empty filter keeps everything.
func filterByPageIDs(pages []domain.DocumentPage, pageIDs []string) []domain.DocumentPage {
	if len(pageIDs) == 0 {
		return pages
	}
	allowed := make(map[string]struct{}, len(pageIDs))
	for _, id := range pageIDs {
		allowed[id] = struct{}{}
	}
	out := pages[:0:0]
	for _, p := range pages {
		if _, ok := allowed[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
