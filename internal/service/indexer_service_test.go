package service

import (
	"context"
	"strings"
	"testing"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(source, content string) entity.ParsedRecord {
	return entity.ParsedRecord{
		Content: content,
		Metadata: map[string]interface{}{
			entity.MetaSource: source,
			entity.MetaType:   "text/plain",
		},
	}
}

func longText(words ...string) string {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString(words[i%len(words)])
		b.WriteString(" ")
	}
	return b.String()
}

func TestIndex_EveryChildResolvesToAParent(t *testing.T) {
	h := newHarness(testIndexConfig())

	res, err := h.indexer.Index(context.Background(), "kb", []entity.ParsedRecord{
		record("a.txt", longText("alpha", "beta", "gamma")),
		record("b.txt", "short note"),
	})
	require.NoError(t, err)

	assert.Equal(t, "kb", res.Collection)
	assert.Equal(t, []string{"a.txt", "b.txt"}, res.Sources)
	assert.Greater(t, res.Children, res.Parents)
	assert.Len(t, h.index.chunks, res.Children)

	for _, c := range h.index.chunks {
		assert.True(t, h.parents.has("kb", c.DocId), "child %s references a missing parent", c.Id)
		assert.Equal(t, c.DocId, c.Metadata[entity.MetaDocID])
		assert.Equal(t, c.Source, c.Metadata[entity.MetaSource])
		assert.Equal(t, "text/plain", c.Metadata[entity.MetaType])
		assert.Len(t, c.EmbeddingValue, 26)
	}

	_, ok := h.index.collections["kb"]
	assert.True(t, ok)
	assert.Equal(t, []string{events.TypeDocumentIngested}, h.publisher.types())
	assert.Empty(t, h.orphans.reports)
}

func TestIndex_NoChildrenWritesNothing(t *testing.T) {
	h := newHarness(testIndexConfig())

	res, err := h.indexer.Index(context.Background(), "kb", []entity.ParsedRecord{record("blank.txt", "   \n\n ")})
	require.NoError(t, err)

	assert.Zero(t, res.Children)
	assert.Empty(t, h.index.chunks)
	ids, _ := h.parents.DocIds(context.Background(), "kb")
	assert.Empty(t, ids)
	assert.Empty(t, h.publisher.types())
}

func TestIndex_ParentStoreFailureLeavesNoChildren(t *testing.T) {
	h := newHarness(testIndexConfig())
	h.parents.failMSet = true

	_, err := h.indexer.Index(context.Background(), "kb", []entity.ParsedRecord{record("a.txt", "some content")})
	require.ErrorIs(t, err, entity.ErrIndexWriteFailure)

	assert.Empty(t, h.index.chunks)
	assert.Zero(t, h.embedder.calls)
	assert.Empty(t, h.orphans.reports)
}

func TestIndex_EmbeddingFailureFlagsOrphans(t *testing.T) {
	h := newHarness(testIndexConfig())
	h.embedder.fail = true

	_, err := h.indexer.Index(context.Background(), "kb", []entity.ParsedRecord{record("a.txt", longText("one", "two"))})
	require.ErrorIs(t, err, entity.ErrIndexWriteFailure)

	assert.Empty(t, h.index.chunks)
	require.Len(t, h.orphans.reports, 1)

	written, _ := h.parents.DocIds(context.Background(), "kb")
	assert.Equal(t, "kb", h.orphans.reports[0].Collection)
	assert.ElementsMatch(t, written, h.orphans.reports[0].DocIds)
}

func TestIndex_VectorIndexFailureFlagsOrphans(t *testing.T) {
	h := newHarness(testIndexConfig())
	h.index.failCreate = true

	_, err := h.indexer.Index(context.Background(), "kb", []entity.ParsedRecord{record("a.txt", "content")})
	require.ErrorIs(t, err, entity.ErrIndexWriteFailure)
	require.Len(t, h.orphans.reports, 1)
	assert.Len(t, h.orphans.reports[0].DocIds, 1)
}

func TestIndex_RejectsBadCollection(t *testing.T) {
	h := newHarness(testIndexConfig())

	_, err := h.indexer.Index(context.Background(), "", nil)
	assert.ErrorIs(t, err, entity.ErrCollectionRequired)

	_, err = h.indexer.Index(context.Background(), "../etc", nil)
	assert.ErrorIs(t, err, entity.ErrInvalidIdentifier)
}

func TestRetrieve_DedupesParentsAndSkipsMissing(t *testing.T) {
	h := newHarness(testIndexConfig())
	ctx := context.Background()

	// p1 owns two children, p2 one; p3's parent record is gone.
	h.parents.put("kb", "p1", "parent one")
	h.parents.put("kb", "p2", "parent two")
	children := []*entity.ChildChunk{
		{Collection: "kb", DocId: "p1", Source: "a.txt", Content: "aaaa"},
		{Collection: "kb", DocId: "p1", Source: "a.txt", Content: "aaab"},
		{Collection: "kb", DocId: "p3", Source: "c.txt", Content: "aabb"},
		{Collection: "kb", DocId: "p2", Source: "b.txt", Content: "bbbb"},
	}
	for _, c := range children {
		vec, _ := h.embedder.Generate(ctx, c.Content, "")
		c.EmbeddingValue = vec.Embedding.Values
	}
	require.NoError(t, h.index.CreateBulk(ctx, children))

	got, err := h.indexer.Retrieve(ctx, "kb", "aaaa")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].DocId)
	assert.Equal(t, "parent one", got[0].Content)
	assert.Equal(t, "a.txt", got[0].Source)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, "p2", got[1].DocId)
}

func TestRetrieve_CapsParents(t *testing.T) {
	cfg := testIndexConfig()
	cfg.ParentK = 1
	h := newHarness(cfg)
	ctx := context.Background()

	h.parents.put("kb", "p1", "one")
	h.parents.put("kb", "p2", "two")
	require.NoError(t, h.index.CreateBulk(ctx, []*entity.ChildChunk{
		{Collection: "kb", DocId: "p1", Content: "x", EmbeddingValue: []float32{1}},
		{Collection: "kb", DocId: "p2", Content: "y", EmbeddingValue: []float32{0.5}},
	}))

	got, err := h.indexer.Retrieve(ctx, "kb", "anything")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	h := newHarness(testIndexConfig())

	_, err := h.indexer.Retrieve(context.Background(), "kb", "")
	assert.ErrorIs(t, err, entity.ErrEmptyQuery)
}

func TestRetrieve_EmptyCollection(t *testing.T) {
	h := newHarness(testIndexConfig())

	got, err := h.indexer.Retrieve(context.Background(), "kb", "hello")
	require.NoError(t, err)
	assert.Empty(t, got)
}
