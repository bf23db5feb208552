package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/contract"
	"ai-knowledgebase-be/internal/repository/memory"
	"ai-knowledgebase-be/internal/repository/specification"
	"ai-knowledgebase-be/internal/repository/unitofwork"
	"ai-knowledgebase-be/pkg/embedding"
	"ai-knowledgebase-be/pkg/events"

	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

// fakeVectorIndex implements ChildChunkRepository and CollectionRepository in memory.
type fakeVectorIndex struct {
	mu          sync.Mutex
	chunks      []*entity.ChildChunk
	collections map[string]time.Time
	failCreate  bool
	failDelete  bool
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{collections: make(map[string]time.Time)}
}

func (f *fakeVectorIndex) CreateBulk(ctx context.Context, chunks []*entity.ChildChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errStoreDown
	}
	for _, c := range chunks {
		cp := *c
		cp.CreatedAt = time.Now()
		f.chunks = append(f.chunks, &cp)
	}
	return nil
}

// matches interprets the filtering specifications; ordering and projection are ignored.
func matches(c *entity.ChildChunk, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByCollection:
			if c.Collection != s.Collection {
				return false
			}
		case specification.ByDocIDs:
			found := false
			for _, id := range s.DocIDs {
				if id == c.DocId {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (f *fakeVectorIndex) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChildChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.ChildChunk
	for _, c := range f.chunks {
		if matches(c, specs) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeVectorIndex) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	chunks, _ := f.FindAll(ctx, specs...)
	return int64(len(chunks)), nil
}

func (f *fakeVectorIndex) ListRefs(ctx context.Context, collection string) ([]*entity.ChildChunkRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []*entity.ChildChunkRef
	for _, c := range f.chunks {
		if c.Collection != collection {
			continue
		}
		refs = append(refs, &entity.ChildChunkRef{Id: c.Id, DocId: c.DocId, Source: c.Source, ContentType: c.ContentType})
	}
	return refs, nil
}

func (f *fakeVectorIndex) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return 0, errStoreDown
	}
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.chunks[:0]
	var n int64
	for _, c := range f.chunks {
		if drop[c.Id] {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.chunks = kept
	return n, nil
}

func (f *fakeVectorIndex) SearchSimilarWithScore(ctx context.Context, collection string, vec []float32, limit int) ([]*contract.ScoredChildChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var scored []*contract.ScoredChildChunk
	for _, c := range f.chunks {
		if c.Collection != collection {
			continue
		}
		var dot float64
		for i := range vec {
			if i < len(c.EmbeddingValue) {
				dot += float64(vec[i]) * float64(c.EmbeddingValue[i])
			}
		}
		scored = append(scored, &contract.ScoredChildChunk{Chunk: c, Similarity: dot})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = time.Now()
	}
	return nil
}

func (f *fakeVectorIndex) countLocked(name string) int64 {
	var n int64
	for _, c := range f.chunks {
		if c.Collection == name {
			n++
		}
	}
	return n
}

func (f *fakeVectorIndex) listCollections(ctx context.Context) ([]*entity.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*entity.Collection, 0, len(names))
	for _, name := range names {
		out = append(out, &entity.Collection{Name: name, ChunkCount: f.countLocked(name), CreatedAt: f.collections[name]})
	}
	return out, nil
}

func (f *fakeVectorIndex) FindOne(ctx context.Context, name string) (*entity.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created, ok := f.collections[name]
	if !ok {
		return nil, nil
	}
	return &entity.Collection{Name: name, ChunkCount: f.countLocked(name), CreatedAt: created}, nil
}

func (f *fakeVectorIndex) sources(collection string) []string {
	refs, _ := f.ListRefs(context.Background(), collection)
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Source)
	}
	return out
}

// fakeCollections exposes fakeVectorIndex as a CollectionRepository, whose FindAll
// signature differs from ChildChunkRepository's.
type fakeCollections struct{ *fakeVectorIndex }

func (f fakeCollections) FindAll(ctx context.Context) ([]*entity.Collection, error) {
	return f.fakeVectorIndex.listCollections(ctx)
}

type fakeUnitOfWork struct {
	index *fakeVectorIndex
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error                   { return nil }
func (u *fakeUnitOfWork) Rollback() error                 { return nil }

func (u *fakeUnitOfWork) ChildChunkRepository() contract.ChildChunkRepository {
	return u.index
}

func (u *fakeUnitOfWork) CollectionRepository() contract.CollectionRepository {
	return fakeCollections{u.index}
}

type fakeFactory struct {
	index *fakeVectorIndex
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{index: f.index}
}

type fakeParentStore struct {
	mu         sync.Mutex
	data       map[string]*entity.ParentChunk
	failMSet   bool
	failDelete map[string]bool
	deleteAll  bool
}

func newFakeParentStore() *fakeParentStore {
	return &fakeParentStore{data: make(map[string]*entity.ParentChunk), failDelete: make(map[string]bool)}
}

func (s *fakeParentStore) key(collection, docId string) string { return collection + ":" + docId }

func (s *fakeParentStore) MSet(ctx context.Context, collection string, parents []*entity.ParentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMSet {
		return errStoreDown
	}
	for _, p := range parents {
		s.data[s.key(collection, p.DocId)] = p
	}
	return nil
}

func (s *fakeParentStore) MGet(ctx context.Context, collection string, docIds []string) ([]*entity.ParentChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.ParentChunk, len(docIds))
	for i, id := range docIds {
		out[i] = s.data[s.key(collection, id)]
	}
	return out, nil
}

func (s *fakeParentStore) Delete(ctx context.Context, collection string, docId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteAll || s.failDelete[docId] {
		return errStoreDown
	}
	delete(s.data, s.key(collection, docId))
	return nil
}

func (s *fakeParentStore) DocIds(ctx context.Context, collection string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for k := range s.data {
		if strings.HasPrefix(k, collection+":") {
			ids = append(ids, strings.TrimPrefix(k, collection+":"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeParentStore) has(collection, docId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[s.key(collection, docId)]
	return ok
}

func (s *fakeParentStore) put(collection, docId, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key(collection, docId)] = &entity.ParentChunk{DocId: docId, Content: content, CreatedAt: time.Now().UTC().Add(-time.Hour)}
}

// letterEmbedder embeds text as its normalized a-z letter histogram.
type letterEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *letterEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	e.mu.Lock()
	e.calls++
	fail := e.fail
	e.mu.Unlock()
	if fail {
		return nil, errors.New("embedding backend down")
	}

	vec := make([]float32, 26)
	var norm float64
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / math.Sqrt(norm))
		}
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: vec}}, nil
}

type recordingOrphans struct {
	mu      sync.Mutex
	reports []OrphanMessage
}

func (r *recordingOrphans) Report(ctx context.Context, collection string, docIds []string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, OrphanMessage{Collection: collection, DocIds: docIds, Reason: reason})
	return nil
}

func (r *recordingOrphans) Consume(ctx context.Context) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func testIndexConfig() config.IndexConfig {
	return config.IndexConfig{
		DefaultCollection: "default",
		ParentChunkSize:   1000,
		ParentOverlap:     200,
		ChildChunkSize:    200,
		ChildOverlap:      50,
		ChildK:            20,
		ParentK:           10,
		EmbedConcurrency:  4,
	}
}

// harness wires every service against the in-memory fakes.
type harness struct {
	index     *fakeVectorIndex
	parents   *fakeParentStore
	embedder  *letterEmbedder
	orphans   *recordingOrphans
	publisher *recordingPublisher
	cache     *memory.CollectionCache

	indexer       IIndexerService
	knowledgebase IKnowledgebaseService
}

func newHarness(cfg config.IndexConfig) *harness {
	h := &harness{
		index:     newFakeVectorIndex(),
		parents:   newFakeParentStore(),
		embedder:  &letterEmbedder{},
		orphans:   &recordingOrphans{},
		publisher: &recordingPublisher{},
		cache:     memory.NewCollectionCache(time.Minute),
	}
	factory := &fakeFactory{index: h.index}
	log := logger.NewNopLogger()

	h.indexer = NewIndexerService(factory, h.parents, h.embedder, h.orphans, h.publisher, h.cache, log, cfg)
	h.knowledgebase = NewKnowledgebaseService(factory, h.parents, h.indexer, h.publisher, h.cache, log)
	return h
}
