package port

import (
	"context"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// OutcomePublisher forwards dispense outcomes to external consumers.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome domain.VendOutcome) error
}

// TopicHandler is implemented by handlers registered per broker topic.
type TopicHandler interface {
	Topic() string
	Handle(ctx context.Context, msg *domain.Message) error
}
