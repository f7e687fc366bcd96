package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsift/internal/domain"
	"docsift/internal/port"
	"docsift/mocks"
)

func TestRegistryUnknownName(t *testing.T) {
	r := NewRegistry(Deps{})
	_, err := r.Build(domain.RetrieverConfig{Name: "nope"})
	assert.ErrorIs(t, err, domain.ErrRetrieverNotFound)
}

func TestRegistryRegisterOverrides(t *testing.T) {
	r := NewRegistry(Deps{})
	called := false
	r.Register("pages", func(cfg domain.RetrieverConfig, deps Deps) (port.Retriever, error) {
		called = true
		return nil, nil
	})
	_, err := r.Build(domain.RetrieverConfig{Name: "pages"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestPagesRetrieverPrefersPageIDs(t *testing.T) {
	repo := new(mocks.MockPageRepo)
	repo.On("GetByIDs", mock.Anything, []string{"p1", "p2"}).Return([]domain.DocumentPage{
		{ID: "p1", PageNumber: 1},
		{ID: "p2", PageNumber: 2},
	}, nil)

	r, err := NewRegistry(Deps{Pages: repo}).Build(domain.RetrieverConfig{Name: "pages"})
	require.NoError(t, err)

	pages, err := r.Retrieve(context.Background(), port.RetrieveInput{
		DocumentIDs: []string{"doc-1"},
		PageIDs:     []string{"p1", "p2"},
	})
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	repo.AssertNotCalled(t, "ListByDocument", mock.Anything, mock.Anything)
}

func TestPagesRetrieverFallsBackToDocuments(t *testing.T) {
	repo := new(mocks.MockPageRepo)
	repo.On("ListByDocument", mock.Anything, "doc-1").Return([]domain.DocumentPage{
		{ID: "p1", DocumentID: "doc-1", PageNumber: 1},
	}, nil)

	r, err := NewRegistry(Deps{Pages: repo}).Build(domain.RetrieverConfig{Name: "pages"})
	require.NoError(t, err)

	pages, err := r.Retrieve(context.Background(), port.RetrieveInput{DocumentIDs: []string{"doc-1"}})
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestDocumentRetrieverOrdersPages(t *testing.T) {
	repo := new(mocks.MockPageRepo)
	repo.On("ListByDocument", mock.Anything, "doc-b").Return([]domain.DocumentPage{
		{ID: "b2", DocumentID: "doc-b", PageNumber: 2},
		{ID: "b1", DocumentID: "doc-b", PageNumber: 1},
	}, nil)
	repo.On("ListByDocument", mock.Anything, "doc-a").Return([]domain.DocumentPage{
		{ID: "a1", DocumentID: "doc-a", PageNumber: 1},
	}, nil)

	r, err := NewRegistry(Deps{Pages: repo}).Build(domain.RetrieverConfig{Name: "document"})
	require.NoError(t, err)

	pages, err := r.Retrieve(context.Background(), port.RetrieveInput{
		DocumentIDs: []string{"doc-b", "doc-a"},
		PageIDs:     []string{"ignored"},
	})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "a1", pages[0].ID)
	assert.Equal(t, "b1", pages[1].ID)
	assert.Equal(t, "b2", pages[2].ID)
}

func TestFullTextRetriever(t *testing.T) {
	repo := new(mocks.MockPageRepo)
	repo.On("SearchFullText", mock.Anything, []string{"doc-1"}, "invoice total", 3).Return([]domain.DocumentPage{
		{ID: "p3", PageNumber: 3},
		{ID: "p1", PageNumber: 1},
		{ID: "p7", PageNumber: 7},
	}, nil)

	r, err := NewRegistry(Deps{Pages: repo}).Build(domain.RetrieverConfig{Name: "fulltext", TopK: 3})
	require.NoError(t, err)

	pages, err := r.Retrieve(context.Background(), port.RetrieveInput{
		Query:       "invoice total",
		DocumentIDs: []string{"doc-1"},
		PageIDs:     []string{"p1", "p7"},
	})
	require.NoError(t, err)
	require.Len(t, pages, 2, "pages outside the scope filter dropped")
	assert.Equal(t, "p1", pages[0].ID)
	assert.Equal(t, "p7", pages[1].ID)
}

func TestFullTextRetrieverDefaultTopK(t *testing.T) {
	repo := new(mocks.MockPageRepo)
	repo.On("SearchFullText", mock.Anything, mock.Anything, "q", defaultTopK).Return(nil, nil)

	r, err := NewRegistry(Deps{Pages: repo}).Build(domain.RetrieverConfig{Name: "fulltext"})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), port.RetrieveInput{Query: "q"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestVectorRetrieverRequiresDeps(t *testing.T) {
	r := NewRegistry(Deps{Pages: new(mocks.MockPageRepo)})
	_, err := r.Build(domain.RetrieverConfig{Name: "vector"})
	assert.Error(t, err)
}

func TestParsePageIDs(t *testing.T) {
	reply := []interface{}{
		int64(2),
		"pagevec:p9", []interface{}{"page_id", "p9"},
		"pagevec:p2", []interface{}{"page_id", "p2", "score", "0.12"},
	}
	assert.Equal(t, []string{"p9", "p2"}, parsePageIDs(reply))

	assert.Nil(t, parsePageIDs([]interface{}{int64(0)}))
	assert.Nil(t, parsePageIDs("garbage"))
}

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, "doc\\-1", escapeTag("doc-1"))
	assert.Equal(t, "a\\,b", escapeTag("a,b"))
}

func TestFilterByPageIDs(t *testing.T) {
	pages := []domain.DocumentPage{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	assert.Len(t, filterByPageIDs(pages, nil), 3)

	out := filterByPageIDs(pages, []string{"c", "a"})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}
