package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

type parentRecord struct {
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

type RedisParentStore struct {
	rdb redis.UniversalClient
}

func NewRedisParentStore(rdb redis.UniversalClient) contract.ParentStore {
	return &RedisParentStore{rdb: rdb}
}

// ParentKey namespaces a parent chunk id under its collection.
func ParentKey(collection, docId string) string {
	return collection + ":" + docId
}

// MSet writes every parent inside one MULTI/EXEC so either all keys land or none do.
func (s *RedisParentStore) MSet(ctx context.Context, collection string, parents []*entity.ParentChunk) error {
	if len(parents) == 0 {
		return nil
	}

	now := time.Now().UTC()
	values := make(map[string][]byte, len(parents))
	for _, p := range parents {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		data, err := json.Marshal(parentRecord{Content: p.Content, Metadata: p.Metadata, CreatedAt: createdAt})
		if err != nil {
			return fmt.Errorf("marshal parent %s: %w", p.DocId, err)
		}
		values[ParentKey(collection, p.DocId)] = data
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range values {
			pipe.Set(ctx, key, data, 0)
		}
		return nil
	})
	return err
}

func (s *RedisParentStore) MGet(ctx context.Context, collection string, docIds []string) ([]*entity.ParentChunk, error) {
	if len(docIds) == 0 {
		return nil, nil
	}

	keys := make([]string, len(docIds))
	for i, id := range docIds {
		keys[i] = ParentKey(collection, id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	parents := make([]*entity.ParentChunk, len(docIds))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec parentRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode parent %s: %w", keys[i], err)
		}
		parents[i] = &entity.ParentChunk{
			DocId:     docIds[i],
			Content:   rec.Content,
			Metadata:  rec.Metadata,
			CreatedAt: rec.CreatedAt,
		}
	}
	return parents, nil
}

func (s *RedisParentStore) Delete(ctx context.Context, collection string, docId string) error {
	return s.rdb.Del(ctx, ParentKey(collection, docId)).Err()
}

func (s *RedisParentStore) DocIds(ctx context.Context, collection string) ([]string, error) {
	prefix := collection + ":"
	var ids []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
