// Package merge rebuilds a complete upload from its staged chunks.
package merge

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/pkg/chunkstore"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

const module = "merge"

var (
	ErrStagingNotFound = fmt.Errorf("%w: staging directory not found", entity.ErrMergeFailure)
	ErrStagingEmpty    = fmt.Errorf("%w: staging directory is empty", entity.ErrMergeFailure)
	ErrIncomplete      = fmt.Errorf("%w: chunk sequence is incomplete", entity.ErrMergeFailure)
	ErrChunkSize       = fmt.Errorf("%w: chunk size mismatch", entity.ErrMergeFailure)
)

// Result is the merged document plus where its bytes live on disk.
type Result struct {
	Document *entity.IngestableDocument
	Path     string
}

type Engine struct {
	store  *chunkstore.Store
	logger logger.ILogger
}

func NewEngine(store *chunkstore.Store, log logger.ILogger) *Engine {
	return &Engine{store: store, logger: log}
}

type stagedChunk struct {
	id    string
	index int
	size  int64
}

// Merge writes every staged chunk at offset index*chunkSize of
// <root>/.merged/<fingerprint><ext>, waits for all writes, then purges the staging
// directory. Every non-final chunk must be exactly chunkSize bytes and the
// indices must form 0..n-1; otherwise nothing is written and staging is kept.
func (e *Engine) Merge(ctx context.Context, fingerprint, filename string, chunkSize int64) (*Result, error) {
	if err := chunkstore.ValidateIdentifier(fingerprint); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", entity.ErrMergeFailure, chunkSize)
	}
	if !e.store.Exists(fingerprint) {
		return nil, ErrStagingNotFound
	}

	chunks, err := e.inspect(fingerprint, chunkSize)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.store.MergedDir(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create merged dir: %v", entity.ErrMergeFailure, err)
	}
	dest := e.store.MergedPath(fingerprint, ExtractExt(filename))
	total := int64(len(chunks)-1)*chunkSize + chunks[len(chunks)-1].size

	if err := e.assemble(ctx, fingerprint, dest, chunks, chunkSize, total); err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("%w: %v", entity.ErrMergeFailure, err)
	}

	if err := e.store.Purge(fingerprint); err != nil {
		e.logger.Warn(module, "Failed to purge staging directory", map[string]interface{}{
			"fingerprint": fingerprint,
			"error":       err.Error(),
		})
	}

	content, err := os.ReadFile(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: read merged file: %v", entity.ErrMergeFailure, err)
	}

	e.logger.Info(module, "Chunks merged", map[string]interface{}{
		"fingerprint": fingerprint,
		"filename":    filename,
		"chunks":      len(chunks),
		"bytes":       total,
	})

	return &Result{
		Document: &entity.IngestableDocument{
			OriginalName: filename,
			Content:      content,
			ContentType:  ResolveContentType(dest, content),
		},
		Path: dest,
	}, nil
}

func (e *Engine) inspect(fingerprint string, chunkSize int64) ([]stagedChunk, error) {
	ids, err := e.store.ListChunks(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", entity.ErrMergeFailure, err)
	}
	if len(ids) == 0 {
		return nil, ErrStagingEmpty
	}

	chunks := make([]stagedChunk, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		idx, err := chunkstore.SequenceIndex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrMergeFailure, err)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: sequence index %d staged twice", ErrIncomplete, idx)
		}
		seen[idx] = true

		info, err := os.Stat(filepath.Join(e.store.Dir(fingerprint), id))
		if err != nil {
			return nil, fmt.Errorf("%w: stat chunk %s: %v", entity.ErrMergeFailure, id, err)
		}
		chunks = append(chunks, stagedChunk{id: id, index: idx, size: info.Size()})
	}

	var missing []string
	for i := 0; i < len(chunks); i++ {
		if !seen[i] {
			missing = append(missing, fmt.Sprint(i))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing indices [%s]", ErrIncomplete, strings.Join(missing, ","))
	}

	last := len(chunks) - 1
	for i, c := range chunks {
		if i < last && c.size != chunkSize {
			return nil, fmt.Errorf("%w: chunk %s is %d bytes, expected %d", ErrChunkSize, c.id, c.size, chunkSize)
		}
		if i == last && (c.size == 0 || c.size > chunkSize) {
			return nil, fmt.Errorf("%w: final chunk %s is %d bytes, expected 1..%d", ErrChunkSize, c.id, c.size, chunkSize)
		}
	}
	return chunks, nil
}

func (e *Engine) assemble(ctx context.Context, fingerprint, dest string, chunks []stagedChunk, chunkSize, total int64) error {
	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := dst.Truncate(total); err != nil {
		dst.Close()
		return err
	}

	// Each task owns the disjoint range [index*chunkSize, index*chunkSize+size).
	g, gctx := errgroup.WithContext(ctx)
	dir := e.store.Dir(fingerprint)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.Open(filepath.Join(dir, c.id))
			if err != nil {
				return err
			}
			defer src.Close()

			written, err := io.Copy(io.NewOffsetWriter(dst, int64(c.index)*chunkSize), src)
			if err != nil {
				return fmt.Errorf("write chunk %s: %w", c.id, err)
			}
			if written != c.size {
				return fmt.Errorf("chunk %s changed while merging", c.id)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// ExtractExt returns the extension of filename including the dot, or "" when
// there is none or it contains characters unsafe for a file name.
func ExtractExt(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	ext := filename[idx:]
	if chunkstore.ValidateIdentifier(ext) != nil {
		return ""
	}
	return ext
}

// ResolveContentType resolves a MIME type from the file extension, falling
// back to content sniffing. Parameters such as charset are dropped.
func ResolveContentType(path string, content []byte) string {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = mimetype.Detect(content).String()
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return contentType
}
