package retrieval

import (
	"context"
	"fmt"
	"sort"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// pagesRetriever returns exactly the requested pages, or every page of
// the requested documents when no page IDs are given.
type pagesRetriever struct {
	pages port.PageRepository
}

func newPagesRetriever(_ domain.RetrieverConfig, deps Deps) (port.Retriever, error) {
	return &pagesRetriever{pages: deps.Pages}, nil
}

func (r *pagesRetriever) Retrieve(ctx context.Context, in port.RetrieveInput) ([]domain.DocumentPage, error) {
	if len(in.PageIDs) > 0 {
		pages, err := r.pages.GetByIDs(ctx, in.PageIDs)
		if err != nil {
			return nil, fmt.Errorf("loading pages by id: %w", err)
		}
		return pages, nil
	}
	return allDocumentPages(ctx, r.pages, in.DocumentIDs)
}

// documentRetriever always returns every page of the requested
// documents, ignoring any page scoping.
type documentRetriever struct {
	pages port.PageRepository
}

func newDocumentRetriever(_ domain.RetrieverConfig, deps Deps) (port.Retriever, error) {
	return &documentRetriever{pages: deps.Pages}, nil
}

func (r *documentRetriever) Retrieve(ctx context.Context, in port.RetrieveInput) ([]domain.DocumentPage, error) {
	return allDocumentPages(ctx, r.pages, in.DocumentIDs)
}

func allDocumentPages(ctx context.Context, repo port.PageRepository, docIDs []string) ([]domain.DocumentPage, error) {
	var out []domain.DocumentPage
	for _, docID := range docIDs {
		pages, err := repo.ListByDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("loading pages for %s: %w", docID, err)
		}
		out = append(out, pages...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].PageNumber < out[j].PageNumber
	})
	return out, nil
}
