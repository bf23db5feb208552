// FILE: internal/service/upload_service.go
package service

import (
	"context"
	"fmt"
	"os"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/dto"
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/pkg/chunkstore"
	"ai-knowledgebase-be/pkg/merge"
)

const uploadModule = "upload"

type IUploadService interface {
	UploadChunk(ctx context.Context, req *dto.UploadChunkRequest, data []byte) (*dto.UploadChunkResponse, error)
	VerifyUpload(ctx context.Context, fingerprint string) (*dto.VerifyUploadResponse, error)
	MergeChunks(ctx context.Context, req *dto.MergeChunksRequest) (*dto.MergeChunksResponse, error)
	UploadDocuments(ctx context.Context, collection string, docs []*entity.IngestableDocument) (*dto.IngestResponse, error)
}

type uploadService struct {
	store            *chunkstore.Store
	engine           *merge.Engine
	ingestionService IIngestionService
	logger           logger.ILogger
	uploadConfig     config.UploadConfig
	defaultCol       string
}

func NewUploadService(
	store *chunkstore.Store,
	engine *merge.Engine,
	ingestionService IIngestionService,
	log logger.ILogger,
	uploadConfig config.UploadConfig,
	defaultCollection string,
) IUploadService {
	return &uploadService{
		store:            store,
		engine:           engine,
		ingestionService: ingestionService,
		logger:           log,
		uploadConfig:     uploadConfig,
		defaultCol:       defaultCollection,
	}
}

func (s *uploadService) collectionOrDefault(collection string) string {
	if collection == "" {
		return s.defaultCol
	}
	return collection
}

func (s *uploadService) UploadChunk(ctx context.Context, req *dto.UploadChunkRequest, data []byte) (*dto.UploadChunkResponse, error) {
	index := -1
	if req.Index != nil {
		index = *req.Index
	}

	res, err := s.store.WriteChunk(req.Fingerprint, req.ChunkId, index, data)
	if err != nil {
		s.logger.Error(uploadModule, "Failed to stage chunk", map[string]interface{}{
			"fingerprint": req.Fingerprint,
			"chunk_id":    req.ChunkId,
			"error":       err.Error(),
		})
		return nil, err
	}

	return &dto.UploadChunkResponse{
		ChunkId:       res.ChunkId,
		AlreadyExists: res.AlreadyExists,
	}, nil
}

func (s *uploadService) VerifyUpload(ctx context.Context, fingerprint string) (*dto.VerifyUploadResponse, error) {
	ids, err := s.store.ListChunks(fingerprint)
	if err != nil {
		return nil, err
	}
	return &dto.VerifyUploadResponse{
		Fingerprint:    fingerprint,
		UploadedChunks: ids,
	}, nil
}

func (s *uploadService) MergeChunks(ctx context.Context, req *dto.MergeChunksRequest) (*dto.MergeChunksResponse, error) {
	collection := s.collectionOrDefault(req.Collection)
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	merged, err := s.engine.Merge(ctx, req.Fingerprint, req.Filename, req.ChunkSize)
	if err != nil {
		s.logger.Warn(uploadModule, "Merge failed", map[string]interface{}{
			"fingerprint": req.Fingerprint,
			"filename":    req.Filename,
			"error":       err.Error(),
		})
		return nil, err
	}

	result, err := s.ingestionService.Ingest(ctx, collection, []*entity.IngestableDocument{merged.Document})
	if err != nil {
		// The merged file is kept so the ingest can be retried by hand.
		return nil, err
	}

	if err := os.Remove(merged.Path); err != nil {
		s.logger.Warn(uploadModule, "Failed to remove merged file", map[string]interface{}{
			"path":  merged.Path,
			"error": err.Error(),
		})
	}

	return &dto.MergeChunksResponse{
		Filename:    merged.Document.OriginalName,
		ContentType: merged.Document.ContentType,
		Size:        len(merged.Document.Content),
		Ingest:      toIngestResponse(result),
	}, nil
}

func (s *uploadService) UploadDocuments(ctx context.Context, collection string, docs []*entity.IngestableDocument) (*dto.IngestResponse, error) {
	collection = s.collectionOrDefault(collection)
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, entity.ErrNoFiles
	}
	if len(docs) > s.uploadConfig.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", entity.ErrTooManyFiles, s.uploadConfig.MaxFiles)
	}
	for _, doc := range docs {
		if int64(len(doc.Content)) > s.uploadConfig.MaxFileSize {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", entity.ErrFileTooLarge, doc.OriginalName, s.uploadConfig.MaxFileSize)
		}
	}

	result, err := s.ingestionService.Ingest(ctx, collection, docs)
	if err != nil {
		return nil, err
	}
	res := toIngestResponse(result)
	return &res, nil
}

func toIngestResponse(result *entity.IndexResult) dto.IngestResponse {
	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return dto.IngestResponse{
		Collection: result.Collection,
		Sources:    sources,
		Parents:    result.Parents,
		Children:   result.Children,
	}
}
