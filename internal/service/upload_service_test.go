package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/dto"
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/pkg/chunkstore"
	"ai-knowledgebase-be/pkg/loader"
	"ai-knowledgebase-be/pkg/merge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	*harness
	root   string
	store  *chunkstore.Store
	upload IUploadService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	h := newHarness(testIndexConfig())
	root := t.TempDir()
	log := logger.NewNopLogger()

	store := chunkstore.New(root)
	ingestion := NewIngestionService(loader.New(log), h.indexer, log)
	upload := NewUploadService(store, merge.NewEngine(store, log), ingestion, log, config.UploadConfig{
		RootDir:     root,
		MaxFiles:    2,
		MaxFileSize: 64,
	}, "default")

	return &pipeline{harness: h, root: root, store: store, upload: upload}
}

func intPtr(n int) *int { return &n }

func TestChunkedUploadEndToEnd(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	content := strings.Repeat("lorem ipsum dolor sit amet ", 100)[:2500]
	chunks := map[int]string{0: content[:1000], 1: content[1000:2000], 2: content[2000:]}

	for _, idx := range []int{2, 0, 1} {
		res, err := p.upload.UploadChunk(ctx, &dto.UploadChunkRequest{
			Fingerprint: "h1",
			ChunkId:     "c-" + string(rune('0'+idx)),
			Index:       intPtr(idx),
		}, []byte(chunks[idx]))
		require.NoError(t, err)
		assert.False(t, res.AlreadyExists)
	}

	again, err := p.upload.UploadChunk(ctx, &dto.UploadChunkRequest{Fingerprint: "h1", ChunkId: "c-1"}, []byte("ignored"))
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)

	verify, err := p.upload.VerifyUpload(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0", "c-1", "c-2"}, verify.UploadedChunks)

	merged, err := p.upload.MergeChunks(ctx, &dto.MergeChunksRequest{
		Fingerprint: "h1",
		Filename:    "guide.txt",
		ChunkSize:   1000,
		Collection:  "kb",
	})
	require.NoError(t, err)
	assert.Equal(t, "guide.txt", merged.Filename)
	assert.Equal(t, "text/plain", merged.ContentType)
	assert.Equal(t, 2500, merged.Size)
	assert.Equal(t, []string{"guide.txt"}, merged.Ingest.Sources)
	assert.Positive(t, merged.Ingest.Children)

	assert.False(t, p.store.Exists("h1"))
	_, statErr := os.Stat(p.store.MergedPath("h1", ".txt"))
	assert.True(t, os.IsNotExist(statErr))

	desc, err := p.knowledgebase.DescribeCollection(ctx, "kb")
	require.NoError(t, err)
	require.Len(t, desc.Documents, 1)
	assert.Equal(t, "guide.txt", desc.Documents[0].Filename)
	assert.Equal(t, "text/plain", desc.Documents[0].Type)

	for _, c := range p.index.chunks {
		assert.True(t, p.parents.has("kb", c.DocId))
	}
}

func TestMergeChunks_IngestFailureKeepsMergedFile(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	p.parents.failMSet = true

	_, err := p.upload.UploadChunk(ctx, &dto.UploadChunkRequest{Fingerprint: "h2", ChunkId: "c-0"}, []byte("hello"))
	require.NoError(t, err)

	_, err = p.upload.MergeChunks(ctx, &dto.MergeChunksRequest{Fingerprint: "h2", Filename: "a.txt", ChunkSize: 5})
	require.ErrorIs(t, err, entity.ErrIndexWriteFailure)

	_, statErr := os.Stat(p.store.MergedPath("h2", ".txt"))
	assert.NoError(t, statErr)
}

func TestMergeChunks_MissingStaging(t *testing.T) {
	p := newPipeline(t)

	_, err := p.upload.MergeChunks(context.Background(), &dto.MergeChunksRequest{Fingerprint: "nope", Filename: "a.txt", ChunkSize: 10})
	assert.ErrorIs(t, err, entity.ErrMergeFailure)
}

func TestUploadChunk_RejectsTraversal(t *testing.T) {
	p := newPipeline(t)

	_, err := p.upload.UploadChunk(context.Background(), &dto.UploadChunkRequest{Fingerprint: "..", ChunkId: "c-0"}, []byte("x"))
	assert.ErrorIs(t, err, entity.ErrInvalidIdentifier)
}

func TestUploadDocuments_DefaultCollection(t *testing.T) {
	p := newPipeline(t)

	res, err := p.upload.UploadDocuments(context.Background(), "", []*entity.IngestableDocument{
		{OriginalName: "notes.md", Content: []byte("# Notes\n\nremember this")},
	})
	require.NoError(t, err)
	assert.Equal(t, "default", res.Collection)
	assert.Equal(t, []string{"notes.md"}, res.Sources)
}

func TestUploadDocuments_Limits(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	small := func(name string) *entity.IngestableDocument {
		return &entity.IngestableDocument{OriginalName: name, Content: []byte("tiny")}
	}

	_, err := p.upload.UploadDocuments(ctx, "kb", nil)
	assert.ErrorIs(t, err, entity.ErrNoFiles)

	_, err = p.upload.UploadDocuments(ctx, "kb", []*entity.IngestableDocument{small("a.txt"), small("b.txt"), small("c.txt")})
	assert.ErrorIs(t, err, entity.ErrTooManyFiles)

	_, err = p.upload.UploadDocuments(ctx, "kb", []*entity.IngestableDocument{
		{OriginalName: "big.txt", Content: []byte(strings.Repeat("x", 65))},
	})
	assert.ErrorIs(t, err, entity.ErrFileTooLarge)

	assert.Empty(t, p.index.chunks)
}

func TestIngest_FailsFastOnUnsupportedFormat(t *testing.T) {
	p := newPipeline(t)

	_, err := p.upload.UploadDocuments(context.Background(), "kb", []*entity.IngestableDocument{
		{OriginalName: "good.txt", Content: []byte("valid text")},
		{OriginalName: "virus.exe", Content: []byte("MZ")},
	})
	require.ErrorIs(t, err, entity.ErrUnsupportedFormat)

	var unsupported *loader.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "exe", unsupported.Ext)

	assert.Empty(t, p.index.chunks)
	ids, _ := p.parents.DocIds(context.Background(), "kb")
	assert.Empty(t, ids)
}

func TestIngest_UsesDeclaredContentType(t *testing.T) {
	p := newPipeline(t)
	ingestion := NewIngestionService(loader.New(logger.NewNopLogger()), p.indexer, logger.NewNopLogger())

	_, err := ingestion.Ingest(context.Background(), "kb", []*entity.IngestableDocument{
		{OriginalName: "data.csv", Content: []byte("name,role\nada,engineer\n"), ContentType: "text/csv"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, p.index.chunks)
	assert.Equal(t, "text/csv", p.index.chunks[0].ContentType)
	assert.Equal(t, "data.csv", p.index.chunks[0].Source)
}

func TestIngest_EmptyBatch(t *testing.T) {
	p := newPipeline(t)
	ingestion := NewIngestionService(loader.New(logger.NewNopLogger()), p.indexer, logger.NewNopLogger())

	_, err := ingestion.Ingest(context.Background(), "kb", nil)
	assert.ErrorIs(t, err, entity.ErrNoFiles)
}
