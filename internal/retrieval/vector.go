package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"docsift/internal/domain"
	"docsift/internal/port"
)

const (
	pageKeyPrefix    = "pagevec:"
	defaultIndexName = "docsift-pages"

	fieldVector     = "vector"
	fieldPageID     = "page_id"
	fieldDocumentID = "document_id"
	fieldPageNumber = "page_number"
	fieldContent    = "content"
)

// PageVectorStore keeps page embeddings in Redis hashes behind a
// RediSearch HNSW index and answers KNN queries over them.
type PageVectorStore struct {
	client    *redis.Client
	embedder  port.Embedder
	model     string
	indexName string
}

// NewPageVectorStore creates a store bound to one index and embedding
// model. The index is created lazily by EnsureIndex.
func NewPageVectorStore(client *redis.Client, embedder port.Embedder, model, indexName string) *PageVectorStore {
	if indexName == "" {
		indexName = defaultIndexName
	}
	return &PageVectorStore{
		client:    client,
		embedder:  embedder,
		model:     model,
		indexName: indexName,
	}
}

// EnsureIndex creates the HNSW index if it does not exist yet.
func (s *PageVectorStore) EnsureIndex(ctx context.Context, dim int) error {
	if _, err := s.client.Do(ctx, "FT.INFO", s.indexName).Result(); err == nil {
		return nil
	}

	_, err := s.client.Do(ctx, "FT.CREATE", s.indexName,
		"ON", "HASH",
		"PREFIX", "1", pageKeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		fieldPageID, "TAG",
		fieldDocumentID, "TAG",
		fieldPageNumber, "NUMERIC",
		fieldContent, "TEXT",
	).Result()
	if err != nil {
		return fmt.Errorf("creating index %s: %w", s.indexName, err)
	}
	return nil
}

// IndexPages embeds page contents and writes them into the index. Keys
// derive from page IDs, so re-indexing a page overwrites it.
func (s *PageVectorStore) IndexPages(ctx context.Context, pages []domain.DocumentPage) error {
	if len(pages) == 0 {
		return nil
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		text := p.ContentMarkdown
		if text == "" {
			text = p.Content
		}
		texts[i] = text
	}

	vectors, err := s.embedder.Embed(ctx, s.model, texts)
	if err != nil {
		return fmt.Errorf("embedding %d pages: %w", len(pages), err)
	}
	if len(vectors) != len(pages) {
		return fmt.Errorf("embedding returned %d vectors for %d pages", len(vectors), len(pages))
	}

	if err := s.EnsureIndex(ctx, len(vectors[0])); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for i, p := range pages {
		vectorBytes, err := encodeVector(vectors[i])
		if err != nil {
			return fmt.Errorf("encoding vector for page %s: %w", p.ID, err)
		}
		pipe.HSet(ctx, pageKeyPrefix+p.ID,
			fieldVector, vectorBytes,
			fieldPageID, p.ID,
			fieldDocumentID, p.DocumentID,
			fieldPageNumber, p.PageNumber,
			fieldContent, texts[i],
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing page vectors: %w", err)
	}
	return nil
}

// DeleteByDocument drops every indexed page of a document.
func (s *PageVectorStore) DeleteByDocument(ctx context.Context, docID string) error {
	result, err := s.client.Do(ctx, "FT.SEARCH", s.indexName,
		fmt.Sprintf("@%s:{%s}", fieldDocumentID, escapeTag(docID)),
		"NOCONTENT",
		"LIMIT", "0", "10000",
	).Result()
	if err != nil {
		return nil
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return nil
	}
	var keys []string
	for i := 1; i < len(values); i++ {
		if key, ok := values[i].(string); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Search embeds the query and returns the page IDs of the nearest
// indexed pages, best match first. An empty docIDs slice searches the
// whole index.
func (s *PageVectorStore) Search(ctx context.Context, query string, docIDs []string, topK int) ([]string, error) {
	if query == "" {
		return nil, fmt.Errorf("query: %w", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	vectors, err := s.embedder.Embed(ctx, s.model, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryBytes, err := encodeVector(vectors[0])
	if err != nil {
		return nil, fmt.Errorf("encoding query vector: %w", err)
	}

	filter := "*"
	if len(docIDs) > 0 {
		escaped := make([]string, len(docIDs))
		for i, id := range docIDs {
			escaped[i] = escapeTag(id)
		}
		filter = fmt.Sprintf("@%s:{%s}", fieldDocumentID, strings.Join(escaped, "|"))
	}
	queryStr := fmt.Sprintf("%s=>[KNN %d @%s $query_vector AS score]", filter, topK, fieldVector)

	result, err := s.client.Do(ctx, "FT.SEARCH", s.indexName, queryStr,
		"PARAMS", "2", "query_vector", queryBytes,
		"RETURN", "1", fieldPageID,
		"SORTBY", "score",
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return parsePageIDs(result), nil
}

// parsePageIDs walks an FT.SEARCH reply: count first, then pairs of
// (key, field list).
func parsePageIDs(result interface{}) []string {
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return nil
	}

	var ids []string
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}
		for j := 0; j+1 < len(fields); j += 2 {
			if name, ok := fields[j].(string); ok && name == fieldPageID {
				if id, ok := fields[j+1].(string); ok {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

func encodeVector(vector []float32) ([]byte, error) {
	return json.Marshal(vector)
}

// escapeTag escapes TAG separator characters in a query value.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "-", "\\-")
	return s
}

// vectorRetriever answers queries by KNN search over indexed page
// embeddings, then loads the winning pages from the repository.
type vectorRetriever struct {
	store *PageVectorStore
	pages port.PageRepository
	topK  int
}

func newVectorRetriever(cfg domain.RetrieverConfig, deps Deps) (port.Retriever, error) {
	if deps.Redis == nil {
		return nil, fmt.Errorf("retriever %q requires a redis client: %w", cfg.Name, domain.ErrInvalidInput)
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("retriever %q requires an embedder: %w", cfg.Name, domain.ErrInvalidInput)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &vectorRetriever{
		store: NewPageVectorStore(deps.Redis, deps.Embedder, cfg.EmbeddingModel, cfg.IndexName),
		pages: deps.Pages,
		topK:  topK,
	}, nil
}

func (r *vectorRetriever) Retrieve(ctx context.Context, in port.RetrieveInput) ([]domain.DocumentPage, error) {
	ids, err := r.store.Search(ctx, in.Query, in.DocumentIDs, r.topK)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pages, err := r.pages.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading matched pages: %w", err)
	}

	// GetByIDs does not guarantee order; restore the score ranking.
	byID := make(map[string]domain.DocumentPage, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}
	out := make([]domain.DocumentPage, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return filterByPageIDs(out, in.PageIDs), nil
}
