package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	// processedSource namespaces message ids in the processed store.
	processedSource = "whatsapp"
)

// TurnProcessor is satisfied by Engine.
type TurnProcessor interface {
	HandleTurn(ctx context.Context, turn Turn) (*Outcome, error)
}

type processedStore interface {
	AlreadyProcessed(ctx context.Context, source, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, source, messageID string) (bool, error)
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        processedStore
	sink             OutcomeSink
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedStore skips inbound messages whose id was already handled.
func WithProcessedStore(store processedStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// WithOutcomeSink publishes each result, for example to the outbound messaging queue.
func WithOutcomeSink(sink OutcomeSink) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.sink = sink
	}
}

// Worker consumes turn jobs from the queue. Any worker can take any turn because
// the conversation lives in the state store.
type Worker struct {
	processor TurnProcessor
	queue     queueClient
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

func NewWorker(processor TurnProcessor, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("dialogue: processor cannot be nil")
	}
	if queue == nil {
		panic("dialogue: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{processor: processor, queue: queue, logger: logger, cfg: cfg}
}

// Start launches the consumer goroutines. They stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until every consumer has stopped.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dialogue worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dialogue worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive turn jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(msg.ReceiptHandle)

	var job turnJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode turn job", "error", err, "msg_id", msg.ID)
		return
	}
	turn := job.Turn

	if w.cfg.processed != nil && turn.MessageID != "" {
		seen, err := w.cfg.processed.AlreadyProcessed(ctx, processedSource, turn.MessageID)
		if err != nil {
			w.logger.Warn("processed lookup failed", "error", err, "message_id", turn.MessageID)
		} else if seen {
			w.logger.Info("skipping duplicate turn", "job_id", job.ID, "message_id", turn.MessageID)
			return
		}
	}

	outcome, err := w.process(ctx, turn)
	result := TurnResult{
		JobID:          job.ID,
		ConversationID: turn.ConversationID,
		MerchantID:     turn.MerchantID,
		CustomerPhone:  turn.CustomerPhone,
		Outcome:        outcome,
	}
	if err != nil {
		w.logger.Error("dialogue turn failed", "error", err, "job_id", job.ID, "conversation_id", turn.ConversationID, "merchant_id", turn.MerchantID)
		result.Error = errorCode(err)
	} else {
		w.logger.Info("dialogue turn processed", "job_id", job.ID, "conversation_id", turn.ConversationID, "stage", outcome.Stage)
		if w.cfg.processed != nil && turn.MessageID != "" {
			if _, err := w.cfg.processed.MarkProcessed(ctx, processedSource, turn.MessageID); err != nil {
				w.logger.Warn("failed to mark turn processed", "error", err, "message_id", turn.MessageID)
			}
		}
	}

	if w.cfg.sink != nil {
		if err := w.cfg.sink.Publish(ctx, result); err != nil {
			w.logger.Error("failed to publish turn outcome", "error", err, "job_id", job.ID)
		}
	}
}

// process retries once when another turn of the same conversation saved first.
func (w *Worker) process(ctx context.Context, turn Turn) (*Outcome, error) {
	outcome, err := w.processor.HandleTurn(ctx, turn)
	if errors.Is(err, ErrStaleState) {
		w.logger.Warn("stale dialogue state, retrying turn", "conversation_id", turn.ConversationID)
		outcome, err = w.processor.HandleTurn(ctx, turn)
	}
	return outcome, err
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrCalendarUnavailable):
		return "calendar_unavailable"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrInvalidTurn):
		return "invalid_turn"
	default:
		return "internal_error"
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete turn job", "error", err)
	}
}
