// FILE: internal/service/orphan_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	OrphanTopic = "PARENT_ORPHANED"

	orphanModule = "orphan"
)

// OrphanMessage flags parent records written for a batch whose children never made it into the index.
type OrphanMessage struct {
	Collection string   `json:"collection"`
	DocIds     []string `json:"doc_ids"`
	Reason     string   `json:"reason"`
}

type IOrphanService interface {
	Report(ctx context.Context, collection string, docIds []string, reason string) error
	Consume(ctx context.Context) error
}

type orphanService struct {
	publisher   message.Publisher
	subscriber  message.Subscriber
	parentStore contract.ParentStore
	logger      logger.ILogger
	retryDelay  time.Duration
}

func NewOrphanService(
	publisher message.Publisher,
	subscriber message.Subscriber,
	parentStore contract.ParentStore,
	log logger.ILogger,
	retryDelay time.Duration,
) IOrphanService {
	return &orphanService{
		publisher:   publisher,
		subscriber:  subscriber,
		parentStore: parentStore,
		logger:      log,
		retryDelay:  retryDelay,
	}
}

func (s *orphanService) Report(ctx context.Context, collection string, docIds []string, reason string) error {
	if len(docIds) == 0 {
		return nil
	}
	payload, err := json.Marshal(OrphanMessage{Collection: collection, DocIds: docIds, Reason: reason})
	if err != nil {
		return err
	}

	s.logger.Warn(orphanModule, "Parent records flagged as orphaned", map[string]interface{}{
		"collection": collection,
		"count":      len(docIds),
		"reason":     reason,
	})

	return s.publisher.Publish(OrphanTopic, message.NewMessage(watermill.NewUUID(), payload))
}

func (s *orphanService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, OrphanTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *orphanService) processMessage(ctx context.Context, msg *message.Message) {
	var payload OrphanMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error(orphanModule, "Failed to unmarshal orphan message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // a malformed message will never succeed
		return
	}

	failed := 0
	for _, docId := range payload.DocIds {
		if err := s.parentStore.Delete(ctx, payload.Collection, docId); err != nil {
			failed++
			s.logger.Error(orphanModule, "Failed to reclaim orphaned parent", map[string]interface{}{
				"collection": payload.Collection,
				"doc_id":     docId,
				"error":      err.Error(),
			})
		}
	}

	// Every key failing means the store is unreachable, so hand the message back.
	if failed > 0 && failed == len(payload.DocIds) {
		select {
		case <-ctx.Done():
		case <-time.After(s.retryDelay):
		}
		msg.Nack()
		return
	}

	s.logger.Info(orphanModule, "Orphaned parents reclaimed", map[string]interface{}{
		"collection": payload.Collection,
		"reclaimed":  len(payload.DocIds) - failed,
		"failed":     failed,
	})
	msg.Ack()
}
