// FILE: internal/service/knowledgebase_service.go
package service

import (
	"context"
	"fmt"

	"ai-knowledgebase-be/internal/dto"
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/contract"
	"ai-knowledgebase-be/internal/repository/memory"
	"ai-knowledgebase-be/internal/repository/unitofwork"
	"ai-knowledgebase-be/pkg/events"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const knowledgebaseModule = "knowledgebase"

var knowledgebaseTracer = otel.Tracer("ai-knowledgebase-be/knowledgebase")

type IKnowledgebaseService interface {
	ListCollections(ctx context.Context) ([]*dto.CollectionResponse, error)
	DescribeCollection(ctx context.Context, name string) (*dto.DescribeCollectionResponse, error)
	RemoveDocument(ctx context.Context, collection string, filename string) (*dto.RemoveDocumentResponse, error)
	Retrieve(ctx context.Context, collection string, query string) (*dto.RetrieveResponse, error)
}

type knowledgebaseService struct {
	uowFactory       unitofwork.RepositoryFactory
	parentStore      contract.ParentStore
	indexerService   IIndexerService
	publisherService IPublisherService
	cache            *memory.CollectionCache
	logger           logger.ILogger
}

func NewKnowledgebaseService(
	uowFactory unitofwork.RepositoryFactory,
	parentStore contract.ParentStore,
	indexerService IIndexerService,
	publisherService IPublisherService,
	cache *memory.CollectionCache,
	log logger.ILogger,
) IKnowledgebaseService {
	return &knowledgebaseService{
		uowFactory:       uowFactory,
		parentStore:      parentStore,
		indexerService:   indexerService,
		publisherService: publisherService,
		cache:            cache,
		logger:           log,
	}
}

func (s *knowledgebaseService) ListCollections(ctx context.Context) ([]*dto.CollectionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	collections, err := uow.CollectionRepository().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.CollectionResponse, 0, len(collections))
	for _, c := range collections {
		result = append(result, &dto.CollectionResponse{
			Name:       c.Name,
			ChunkCount: c.ChunkCount,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		})
	}
	return result, nil
}

func (s *knowledgebaseService) DescribeCollection(ctx context.Context, name string) (*dto.DescribeCollectionResponse, error) {
	if err := ValidateCollection(name); err != nil {
		return nil, err
	}

	docs, ok := s.cache.Get(name)
	if !ok {
		var err error
		docs, err = s.describe(ctx, name)
		if err != nil {
			return nil, err
		}
		s.cache.Save(name, docs)
	}

	result := &dto.DescribeCollectionResponse{
		Name:      name,
		Documents: make([]*dto.CollectionDocumentResponse, 0, len(docs)),
	}
	for _, d := range docs {
		result.Documents = append(result.Documents, &dto.CollectionDocumentResponse{
			Filename: d.Filename,
			Type:     d.Type,
		})
	}
	return result, nil
}

// describe dedupes the collection's entries on (source, type) in first-seen order.
func (s *knowledgebaseService) describe(ctx context.Context, name string) ([]entity.CollectionDocument, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	collection, err := uow.CollectionRepository().FindOne(ctx, name)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrCollectionNotFound, name)
	}

	refs, err := uow.ChildChunkRepository().ListRefs(ctx, name)
	if err != nil {
		return nil, err
	}

	seen := make(map[entity.CollectionDocument]bool)
	docs := make([]entity.CollectionDocument, 0)
	for _, ref := range refs {
		doc := entity.CollectionDocument{Filename: ref.Source, Type: ref.ContentType}
		if seen[doc] {
			continue
		}
		seen[doc] = true
		docs = append(docs, doc)
	}
	return docs, nil
}

// RemoveDocument deletes the document's children from the vector index, then
// reclaims the parents no remaining child references. The second phase is
// best effort: a parent that fails to delete is a leak, never a dangling reference.
func (s *knowledgebaseService) RemoveDocument(ctx context.Context, collection string, filename string) (*dto.RemoveDocumentResponse, error) {
	ctx, span := knowledgebaseTracer.Start(ctx, "knowledgebase.RemoveDocument")
	defer span.End()

	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, entity.ErrFilenameRequired
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	refs, err := uow.ChildChunkRepository().ListRefs(ctx, collection)
	if err != nil {
		return nil, err
	}

	var (
		matchedIds []uuid.UUID
		docIds     []string
		seenDoc    = make(map[string]bool)
		stillUsed  = make(map[string]bool)
	)
	for _, ref := range refs {
		if ref.Source != filename {
			stillUsed[ref.DocId] = true
			continue
		}
		matchedIds = append(matchedIds, ref.Id)
		if !seenDoc[ref.DocId] {
			seenDoc[ref.DocId] = true
			docIds = append(docIds, ref.DocId)
		}
	}

	result := &entity.RemovalResult{Collection: collection, Filename: filename}
	if len(matchedIds) == 0 {
		return toRemoveDocumentResponse(result), nil
	}

	deleted, err := uow.ChildChunkRepository().DeleteByIDs(ctx, matchedIds)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result.DeletedChunks = int(deleted)
	s.cache.Invalidate(collection)

	for _, docId := range docIds {
		if stillUsed[docId] {
			continue
		}
		if err := s.parentStore.Delete(ctx, collection, docId); err != nil {
			result.FailedParents = append(result.FailedParents, docId)
			s.logger.Warn(knowledgebaseModule, entity.ErrConsistencyDeleteFailure.Error(), map[string]interface{}{
				"collection": collection,
				"doc_id":     docId,
				"filename":   filename,
				"error":      err.Error(),
			})
			continue
		}
		result.DeletedParents++
	}

	span.SetAttributes(
		attribute.Int("deleted_chunks", result.DeletedChunks),
		attribute.Int("deleted_parents", result.DeletedParents),
		attribute.Int("failed_parents", len(result.FailedParents)),
	)

	if err := s.publisherService.Publish(ctx, events.NewDocumentRemoved(collection, filename, result.DeletedChunks, result.DeletedParents)); err != nil {
		s.logger.Warn(knowledgebaseModule, "Failed to publish removal event", map[string]interface{}{
			"collection": collection,
			"error":      err.Error(),
		})
	}

	s.logger.Info(knowledgebaseModule, "Document removed", map[string]interface{}{
		"collection":      collection,
		"filename":        filename,
		"deleted_chunks":  result.DeletedChunks,
		"deleted_parents": result.DeletedParents,
		"failed_parents":  len(result.FailedParents),
	})

	return toRemoveDocumentResponse(result), nil
}

func (s *knowledgebaseService) Retrieve(ctx context.Context, collection string, query string) (*dto.RetrieveResponse, error) {
	parents, err := s.indexerService.Retrieve(ctx, collection, query)
	if err != nil {
		return nil, err
	}

	contexts := make([]*dto.RetrievedContextResponse, 0, len(parents))
	for _, p := range parents {
		contexts = append(contexts, &dto.RetrievedContextResponse{
			DocId:   p.DocId,
			Source:  p.Source,
			Content: p.Content,
			Score:   p.Score,
		})
	}
	return &dto.RetrieveResponse{
		Collection: collection,
		Query:      query,
		Contexts:   contexts,
	}, nil
}

func toRemoveDocumentResponse(r *entity.RemovalResult) *dto.RemoveDocumentResponse {
	return &dto.RemoveDocumentResponse{
		Collection:     r.Collection,
		Filename:       r.Filename,
		DeletedChunks:  r.DeletedChunks,
		DeletedParents: r.DeletedParents,
		FailedParents:  r.FailedParents,
	}
}
