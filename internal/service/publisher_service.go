// FILE: internal/service/publisher_service.go
package service

import (
	"context"

	"ai-knowledgebase-be/pkg/events"
)

// IPublisherService delivers lifecycle events to the outside world.
// *nats.Publisher implements it.
type IPublisherService interface {
	Publish(ctx context.Context, event events.Event) error
}

type nopPublisherService struct{}

// NewNopPublisherService is used when NATS_URL is not configured.
func NewNopPublisherService() IPublisherService {
	return nopPublisherService{}
}

func (nopPublisherService) Publish(ctx context.Context, event events.Event) error {
	return nil
}
