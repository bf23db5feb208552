package service

import (
	"context"
	"testing"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChild(t *testing.T, h *harness, collection, docId, source string) {
	t.Helper()
	require.NoError(t, h.index.CreateBulk(context.Background(), []*entity.ChildChunk{{
		Id:          uuid.New(),
		Collection:  collection,
		DocId:       docId,
		Source:      source,
		ContentType: "text/plain",
		Content:     source + " " + docId,
	}}))
	require.NoError(t, h.index.Upsert(context.Background(), collection))
}

func TestRemoveDocument_KeepsParentsStillReferenced(t *testing.T) {
	h := newHarness(testIndexConfig())
	ctx := context.Background()

	h.parents.put("kb", "own", "only a.txt")
	h.parents.put("kb", "shared", "a.txt and b.txt")
	h.parents.put("kb", "other", "only b.txt")
	seedChild(t, h, "kb", "own", "a.txt")
	seedChild(t, h, "kb", "own", "a.txt")
	seedChild(t, h, "kb", "shared", "a.txt")
	seedChild(t, h, "kb", "shared", "b.txt")
	seedChild(t, h, "kb", "other", "b.txt")

	res, err := h.knowledgebase.RemoveDocument(ctx, "kb", "a.txt")
	require.NoError(t, err)

	assert.Equal(t, 3, res.DeletedChunks)
	assert.Equal(t, 1, res.DeletedParents)
	assert.Empty(t, res.FailedParents)

	assert.NotContains(t, h.index.sources("kb"), "a.txt")
	assert.False(t, h.parents.has("kb", "own"))
	assert.True(t, h.parents.has("kb", "shared"))
	assert.True(t, h.parents.has("kb", "other"))

	// No surviving child may point at a parent that was removed.
	refs, _ := h.index.ListRefs(ctx, "kb")
	for _, ref := range refs {
		assert.True(t, h.parents.has("kb", ref.DocId))
	}
	assert.Equal(t, []string{events.TypeDocumentRemoved}, h.publisher.types())
}

func TestRemoveDocument_ParentDeleteFailureIsCollected(t *testing.T) {
	h := newHarness(testIndexConfig())
	ctx := context.Background()

	h.parents.put("kb", "p1", "one")
	h.parents.put("kb", "p2", "two")
	seedChild(t, h, "kb", "p1", "a.txt")
	seedChild(t, h, "kb", "p2", "a.txt")
	h.parents.failDelete["p1"] = true

	res, err := h.knowledgebase.RemoveDocument(ctx, "kb", "a.txt")
	require.NoError(t, err)

	assert.Equal(t, 2, res.DeletedChunks)
	assert.Equal(t, 1, res.DeletedParents)
	assert.Equal(t, []string{"p1"}, res.FailedParents)
	assert.Empty(t, h.index.sources("kb"))
	assert.False(t, h.parents.has("kb", "p2"))
}

func TestRemoveDocument_VectorDeleteFailureTouchesNoParents(t *testing.T) {
	h := newHarness(testIndexConfig())
	h.parents.put("kb", "p1", "one")
	seedChild(t, h, "kb", "p1", "a.txt")
	h.index.failDelete = true

	_, err := h.knowledgebase.RemoveDocument(context.Background(), "kb", "a.txt")
	require.Error(t, err)
	assert.True(t, h.parents.has("kb", "p1"))
}

func TestRemoveDocument_UnknownFileIsANoop(t *testing.T) {
	h := newHarness(testIndexConfig())
	seedChild(t, h, "kb", "p1", "a.txt")

	res, err := h.knowledgebase.RemoveDocument(context.Background(), "kb", "missing.txt")
	require.NoError(t, err)
	assert.Zero(t, res.DeletedChunks)
	assert.Len(t, h.index.chunks, 1)
	assert.Empty(t, h.publisher.types())
}

func TestRemoveDocument_RequiresFilename(t *testing.T) {
	h := newHarness(testIndexConfig())

	_, err := h.knowledgebase.RemoveDocument(context.Background(), "kb", "")
	assert.ErrorIs(t, err, entity.ErrFilenameRequired)
}

func TestDescribeCollection_DedupesAndRefreshesAfterRemoval(t *testing.T) {
	h := newHarness(testIndexConfig())
	ctx := context.Background()
	h.parents.put("kb", "p1", "one")
	h.parents.put("kb", "p2", "two")
	seedChild(t, h, "kb", "p1", "a.txt")
	seedChild(t, h, "kb", "p1", "a.txt")
	seedChild(t, h, "kb", "p2", "b.txt")

	desc, err := h.knowledgebase.DescribeCollection(ctx, "kb")
	require.NoError(t, err)
	require.Len(t, desc.Documents, 2)
	assert.Equal(t, "a.txt", desc.Documents[0].Filename)
	assert.Equal(t, "text/plain", desc.Documents[0].Type)
	assert.Equal(t, "b.txt", desc.Documents[1].Filename)

	_, err = h.knowledgebase.RemoveDocument(ctx, "kb", "a.txt")
	require.NoError(t, err)

	desc, err = h.knowledgebase.DescribeCollection(ctx, "kb")
	require.NoError(t, err)
	require.Len(t, desc.Documents, 1)
	assert.Equal(t, "b.txt", desc.Documents[0].Filename)
}

func TestDescribeCollection_NotFound(t *testing.T) {
	h := newHarness(testIndexConfig())

	_, err := h.knowledgebase.DescribeCollection(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrCollectionNotFound)
}

func TestListCollections(t *testing.T) {
	h := newHarness(testIndexConfig())
	seedChild(t, h, "beta", "p1", "a.txt")
	seedChild(t, h, "alpha", "p2", "b.txt")
	seedChild(t, h, "alpha", "p3", "c.txt")

	cols, err := h.knowledgebase.ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "alpha", cols[0].Name)
	assert.EqualValues(t, 2, cols[0].ChunkCount)
	assert.Equal(t, "beta", cols[1].Name)
}

func TestKnowledgebaseRetrieve(t *testing.T) {
	h := newHarness(testIndexConfig())
	ctx := context.Background()

	_, err := h.indexer.Index(ctx, "kb", []entity.ParsedRecord{record("guide.txt", "the quick brown fox")})
	require.NoError(t, err)

	res, err := h.knowledgebase.Retrieve(ctx, "kb", "quick fox")
	require.NoError(t, err)
	assert.Equal(t, "quick fox", res.Query)
	require.Len(t, res.Contexts, 1)
	assert.Equal(t, "guide.txt", res.Contexts[0].Source)
	assert.Equal(t, "the quick brown fox", res.Contexts[0].Content)
}
