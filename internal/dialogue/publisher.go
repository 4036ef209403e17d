package dialogue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// Publisher enqueues turns for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("dialogue: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueTurn publishes a turn and returns the job id. The inbound message id is
// reused as job id when present.
func (p *Publisher) EnqueueTurn(ctx context.Context, turn Turn) (string, error) {
	job, body, err := encodeJob(turnJob{Turn: turn})
	if err != nil {
		return "", err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("dialogue: failed to enqueue turn: %w", err)
	}
	p.logger.Debug("dialogue turn enqueued", "job_id", job.ID, "conversation_id", turn.ConversationID)
	return job.ID, nil
}

// OutcomeSink receives the result of each processed turn.
type OutcomeSink interface {
	Publish(ctx context.Context, result TurnResult) error
}

// QueueOutcomeSink writes results as JSON to a queue for the messaging layer.
type QueueOutcomeSink struct {
	queue queueClient
}

func NewQueueOutcomeSink(queue queueClient) *QueueOutcomeSink {
	if queue == nil {
		panic("dialogue: outcome queue cannot be nil")
	}
	return &QueueOutcomeSink{queue: queue}
}

func (s *QueueOutcomeSink) Publish(ctx context.Context, result TurnResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("dialogue: encode outcome: %w", err)
	}
	if err := s.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("dialogue: publish outcome: %w", err)
	}
	return nil
}
