// FILE: internal/service/indexer_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/contract"
	"ai-knowledgebase-be/internal/repository/memory"
	"ai-knowledgebase-be/internal/repository/unitofwork"
	"ai-knowledgebase-be/pkg/chunkstore"
	"ai-knowledgebase-be/pkg/embedding"
	"ai-knowledgebase-be/pkg/events"
	"ai-knowledgebase-be/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const indexerModule = "indexer"

var indexerTracer = otel.Tracer("ai-knowledgebase-be/indexer")

type IIndexerService interface {
	Index(ctx context.Context, collection string, records []entity.ParsedRecord) (*entity.IndexResult, error)
	Retrieve(ctx context.Context, collection string, query string) ([]*entity.RetrievedParent, error)
}

type indexerService struct {
	uowFactory        unitofwork.RepositoryFactory
	parentStore       contract.ParentStore
	embeddingProvider embedding.EmbeddingProvider
	orphanService     IOrphanService
	publisherService  IPublisherService
	cache             *memory.CollectionCache
	logger            logger.ILogger

	parentSplitter   *utils.RecursiveTextSplitter
	childSplitter    *utils.RecursiveTextSplitter
	childK           int
	parentK          int
	embedConcurrency int
}

func NewIndexerService(
	uowFactory unitofwork.RepositoryFactory,
	parentStore contract.ParentStore,
	embeddingProvider embedding.EmbeddingProvider,
	orphanService IOrphanService,
	publisherService IPublisherService,
	cache *memory.CollectionCache,
	log logger.ILogger,
	cfg config.IndexConfig,
) IIndexerService {
	concurrency := cfg.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &indexerService{
		uowFactory:        uowFactory,
		parentStore:       parentStore,
		embeddingProvider: embeddingProvider,
		orphanService:     orphanService,
		publisherService:  publisherService,
		cache:             cache,
		logger:            log,
		parentSplitter:    utils.NewRecursiveTextSplitter(cfg.ParentChunkSize, cfg.ParentOverlap),
		childSplitter:     utils.NewRecursiveTextSplitter(cfg.ChildChunkSize, cfg.ChildOverlap),
		childK:            cfg.ChildK,
		parentK:           cfg.ParentK,
		embedConcurrency:  concurrency,
	}
}

// ValidateCollection applies the identifier rules used for staging paths, so a
// collection name is always a safe Parent Store key prefix.
func ValidateCollection(collection string) error {
	if collection == "" {
		return entity.ErrCollectionRequired
	}
	return chunkstore.ValidateIdentifier(collection)
}

// split builds the parent/child hierarchy. Each child inherits its record's
// metadata plus the doc_id back-reference to its parent.
func (s *indexerService) split(collection string, records []entity.ParsedRecord) ([]*entity.ParentChunk, []*entity.ChildChunk, []string) {
	var (
		parents  []*entity.ParentChunk
		children []*entity.ChildChunk
		sources  []string
	)
	seenSource := make(map[string]bool)
	now := time.Now().UTC()

	for _, record := range records {
		source, _ := record.Metadata[entity.MetaSource].(string)
		contentType, _ := record.Metadata[entity.MetaType].(string)
		if !seenSource[source] {
			seenSource[source] = true
			sources = append(sources, source)
		}

		for _, parentText := range s.parentSplitter.SplitText(record.Content) {
			docId := uuid.NewString()

			parentMeta := copyMetadata(record.Metadata)
			parentMeta[entity.MetaDocID] = docId
			parents = append(parents, &entity.ParentChunk{
				DocId:     docId,
				Content:   parentText,
				Metadata:  parentMeta,
				CreatedAt: now,
			})

			for i, childText := range s.childSplitter.SplitText(parentText) {
				childMeta := copyMetadata(record.Metadata)
				childMeta[entity.MetaDocID] = docId
				childMeta[entity.MetaSource] = source
				childMeta[entity.MetaType] = contentType

				children = append(children, &entity.ChildChunk{
					Id:          uuid.New(),
					Collection:  collection,
					DocId:       docId,
					Source:      source,
					ContentType: contentType,
					Content:     childText,
					Metadata:    childMeta,
					ChunkIndex:  i,
				})
			}
		}
	}
	return parents, children, sources
}

func (s *indexerService) Index(ctx context.Context, collection string, records []entity.ParsedRecord) (*entity.IndexResult, error) {
	ctx, span := indexerTracer.Start(ctx, "indexer.Index")
	defer span.End()

	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	parents, children, sources := s.split(collection, records)
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("parents", len(parents)),
		attribute.Int("children", len(children)),
	)

	result := &entity.IndexResult{Collection: collection, Sources: sources}
	if len(children) == 0 {
		return result, nil
	}

	// Parents first: a child must never reference a key that was not written.
	if err := s.parentStore.MSet(ctx, collection, parents); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: parent store: %v", entity.ErrIndexWriteFailure, err)
	}

	docIds := make([]string, len(parents))
	for i, p := range parents {
		docIds[i] = p.DocId
	}

	if err := s.embed(ctx, children); err != nil {
		span.RecordError(err)
		s.flagOrphans(ctx, collection, docIds, err)
		return nil, fmt.Errorf("%w: embedding: %v", entity.ErrIndexWriteFailure, err)
	}

	if err := s.writeChildren(ctx, collection, children); err != nil {
		span.RecordError(err)
		s.flagOrphans(ctx, collection, docIds, err)
		return nil, fmt.Errorf("%w: vector index: %v", entity.ErrIndexWriteFailure, err)
	}

	s.cache.Invalidate(collection)

	result.Parents = len(parents)
	result.Children = len(children)

	if err := s.publisherService.Publish(ctx, events.NewDocumentIngested(collection, sources, result.Parents, result.Children)); err != nil {
		s.logger.Warn(indexerModule, "Failed to publish ingest event", map[string]interface{}{
			"collection": collection,
			"error":      err.Error(),
		})
	}

	s.logger.Info(indexerModule, "Records indexed", map[string]interface{}{
		"collection": collection,
		"sources":    sources,
		"parents":    result.Parents,
		"children":   result.Children,
	})

	return result, nil
}

func (s *indexerService) embed(ctx context.Context, children []*entity.ChildChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedConcurrency)

	for _, child := range children {
		child := child
		g.Go(func() error {
			res, err := s.embeddingProvider.Generate(gctx, child.Content, embedding.TaskRetrievalDocument)
			if err != nil {
				return err
			}
			child.EmbeddingValue = res.Embedding.Values
			return nil
		})
	}
	return g.Wait()
}

func (s *indexerService) writeChildren(ctx context.Context, collection string, children []*entity.ChildChunk) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	if err := uow.CollectionRepository().Upsert(ctx, collection); err != nil {
		uow.Rollback()
		return err
	}
	if err := uow.ChildChunkRepository().CreateBulk(ctx, children); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (s *indexerService) flagOrphans(ctx context.Context, collection string, docIds []string, cause error) {
	// The request context may already be cancelled; the flag must still go out.
	if err := s.orphanService.Report(context.WithoutCancel(ctx), collection, docIds, cause.Error()); err != nil {
		s.logger.Error(indexerModule, "Failed to flag orphaned parents", map[string]interface{}{
			"collection": collection,
			"count":      len(docIds),
			"error":      err.Error(),
		})
	}
}

func (s *indexerService) Retrieve(ctx context.Context, collection string, query string) ([]*entity.RetrievedParent, error) {
	ctx, span := indexerTracer.Start(ctx, "indexer.Retrieve")
	defer span.End()

	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, entity.ErrEmptyQuery
	}

	res, err := s.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.ChildChunkRepository().SearchSimilarWithScore(ctx, collection, res.Embedding.Values, s.childK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Children arrive best first; keep the first hit per parent.
	var (
		docIds []string
		hits   = make(map[string]*contract.ScoredChildChunk)
	)
	for _, sc := range scored {
		if _, ok := hits[sc.Chunk.DocId]; ok {
			continue
		}
		if len(docIds) == s.parentK {
			break
		}
		hits[sc.Chunk.DocId] = sc
		docIds = append(docIds, sc.Chunk.DocId)
	}
	if len(docIds) == 0 {
		return []*entity.RetrievedParent{}, nil
	}

	parents, err := s.parentStore.MGet(ctx, collection, docIds)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := make([]*entity.RetrievedParent, 0, len(docIds))
	for i, parent := range parents {
		if parent == nil {
			s.logger.Warn(indexerModule, "Child chunk references a missing parent", map[string]interface{}{
				"collection": collection,
				"doc_id":     docIds[i],
			})
			continue
		}
		hit := hits[docIds[i]]
		result = append(result, &entity.RetrievedParent{
			DocId:    parent.DocId,
			Source:   hit.Chunk.Source,
			Content:  parent.Content,
			Score:    hit.Similarity,
			Metadata: parent.Metadata,
		})
	}

	span.SetAttributes(attribute.Int("children", len(scored)), attribute.Int("parents", len(result)))
	return result, nil
}

func copyMetadata(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+3)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
