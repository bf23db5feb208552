// FILE: internal/service/integrity_service.go
package service

import (
	"context"
	"sort"
	"time"

	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/contract"
	"ai-knowledgebase-be/internal/repository/specification"
	"ai-knowledgebase-be/internal/repository/unitofwork"
)

const integrityModule = "integrity"

// IntegrityReport compares one collection's Vector Index against its Parent Store keys.
type IntegrityReport struct {
	Collection string
	Children   int
	Parents    int
	// Dangling lists doc ids referenced by children but missing from the Parent Store.
	Dangling []string
	// DanglingSources lists the filenames those children came from.
	DanglingSources []string
	// Orphans lists Parent Store keys no child references, older than the grace window.
	Orphans   []string
	// Pending lists unreferenced keys still inside the grace window; an index
	// call may be about to commit their children.
	Pending   []string
	Reclaimed int
}

func (r *IntegrityReport) Healthy() bool {
	return len(r.Dangling) == 0
}

type IIntegrityService interface {
	Check(ctx context.Context, collection string, fix bool) (*IntegrityReport, error)
	Collections(ctx context.Context) ([]string, error)
}

type integrityService struct {
	uowFactory  unitofwork.RepositoryFactory
	parentStore contract.ParentStore
	grace       time.Duration
	logger      logger.ILogger
}

func NewIntegrityService(uowFactory unitofwork.RepositoryFactory, parentStore contract.ParentStore, grace time.Duration, log logger.ILogger) IIntegrityService {
	return &integrityService{
		uowFactory:  uowFactory,
		parentStore: parentStore,
		grace:       grace,
		logger:      log,
	}
}

func (s *integrityService) Collections(ctx context.Context) ([]string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	collections, err := uow.CollectionRepository().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(collections))
	for _, c := range collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// Check lists dangling children and orphaned parents. With fix set, orphaned
// parents are deleted once they are past the grace window and still
// unreferenced; dangling children are only reported.
func (s *integrityService) Check(ctx context.Context, collection string, fix bool) (*IntegrityReport, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	children, err := uow.ChildChunkRepository().Count(ctx, specification.ByCollection{Collection: collection})
	if err != nil {
		return nil, err
	}
	refs, err := uow.ChildChunkRepository().ListRefs(ctx, collection)
	if err != nil {
		return nil, err
	}
	docIds, err := s.parentStore.DocIds(ctx, collection)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]bool, len(refs))
	for _, ref := range refs {
		referenced[ref.DocId] = true
	}
	stored := make(map[string]bool, len(docIds))
	for _, id := range docIds {
		stored[id] = true
	}

	report := &IntegrityReport{
		Collection:      collection,
		Children:        int(children),
		Parents:         len(docIds),
		Dangling:        []string{},
		DanglingSources: []string{},
		Orphans:         []string{},
		Pending:         []string{},
	}
	for id := range referenced {
		if !stored[id] {
			report.Dangling = append(report.Dangling, id)
		}
	}
	var candidates []string
	for _, id := range docIds {
		if !referenced[id] {
			candidates = append(candidates, id)
		}
	}
	if err := s.classifyOrphans(ctx, collection, candidates, report); err != nil {
		return nil, err
	}
	sort.Strings(report.Dangling)
	sort.Strings(report.Orphans)
	sort.Strings(report.Pending)

	if len(report.Dangling) > 0 {
		affected, err := uow.ChildChunkRepository().FindAll(ctx,
			specification.ByCollection{Collection: collection},
			specification.ByDocIDs{DocIDs: report.Dangling},
			specification.Columns{Names: []string{"id", "doc_id", "source", "created_at"}},
			specification.OrderBy{Field: "created_at"},
		)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, c := range affected {
			if !seen[c.Source] {
				seen[c.Source] = true
				report.DanglingSources = append(report.DanglingSources, c.Source)
			}
		}
	}

	if fix {
		for _, id := range report.Orphans {
			refs, err := uow.ChildChunkRepository().Count(ctx,
				specification.ByCollection{Collection: collection},
				specification.ByDocIDs{DocIDs: []string{id}},
			)
			if err != nil {
				return nil, err
			}
			if refs > 0 {
				s.logger.Info(integrityModule, "Parent gained children since the scan, keeping it", map[string]interface{}{
					"collection": collection,
					"doc_id":     id,
				})
				continue
			}
			if err := s.parentStore.Delete(ctx, collection, id); err != nil {
				s.logger.Warn(integrityModule, "Failed to reclaim orphaned parent", map[string]interface{}{
					"collection": collection,
					"doc_id":     id,
					"error":      err.Error(),
				})
				continue
			}
			report.Reclaimed++
		}
	}

	if !report.Healthy() {
		s.logger.Error(integrityModule, "Children reference missing parents", map[string]interface{}{
			"collection": collection,
			"dangling":   len(report.Dangling),
		})
	}
	return report, nil
}

// classifyOrphans splits unreferenced keys into orphans and pending keys by
// their write time. Records without a timestamp count as orphans.
func (s *integrityService) classifyOrphans(ctx context.Context, collection string, candidates []string, report *IntegrityReport) error {
	if len(candidates) == 0 {
		return nil
	}
	parents, err := s.parentStore.MGet(ctx, collection, candidates)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-s.grace)
	for i, p := range parents {
		if p == nil {
			continue
		}
		if !p.CreatedAt.IsZero() && p.CreatedAt.After(cutoff) {
			report.Pending = append(report.Pending, candidates[i])
			continue
		}
		report.Orphans = append(report.Orphans, candidates[i])
	}
	return nil
}
