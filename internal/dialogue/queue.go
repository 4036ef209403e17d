package dialogue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// turnJob is the queued form of one inbound message.
type turnJob struct {
	ID   string `json:"id"`
	Turn Turn   `json:"turn"`
}

func encodeJob(job turnJob) (turnJob, string, error) {
	if job.ID == "" {
		job.ID = job.Turn.MessageID
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return turnJob{}, "", fmt.Errorf("dialogue: failed to encode turn job: %w", err)
	}
	return job, string(body), nil
}

// TurnResult is published for every processed job.
type TurnResult struct {
	JobID          string   `json:"job_id"`
	ConversationID string   `json:"conversation_id"`
	MerchantID     string   `json:"merchant_id"`
	CustomerPhone  string   `json:"customer_phone"`
	Outcome        *Outcome `json:"outcome,omitempty"`
	Error          string   `json:"error,omitempty"`
}
