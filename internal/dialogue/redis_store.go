package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStateTTL is how long an idle conversation is kept.
const DefaultStateTTL = 7 * 24 * time.Hour

// RedisStateStore keeps state as JSON under booking_dialogue:{conversationID}.
type RedisStateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	now    func() time.Time
}

var _ StateStore = (*RedisStateStore)(nil)

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("dialogue: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("wabook.internal.dialogue.state"),
		now:    time.Now,
	}
}

func stateKey(conversationID string) string {
	return fmt.Sprintf("booking_dialogue:%s", conversationID)
}

func (s *RedisStateStore) Load(ctx context.Context, conversationID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "dialogue.load_state")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_id", conversationID))

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("dialogue: failed to load state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("dialogue: failed to decode state: %w", err)
	}
	return &state, nil
}

// Save uses WATCH so that two turns of one conversation cannot both win.
func (s *RedisStateStore) Save(ctx context.Context, st *State) error {
	if st == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "dialogue.save_state")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation_id", st.ConversationID),
		attribute.String("stage", string(st.Stage)),
		attribute.Int64("version", st.Version),
	)

	key := stateKey(st.ConversationID)
	next := st.Clone()
	next.Version = st.Version + 1
	next.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(next)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialogue: failed to marshal state: %w", err)
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != st.Version {
			return ErrStaleState
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleState), errors.Is(err, redis.TxFailedErr):
		return ErrStaleState
	default:
		span.RecordError(err)
		return fmt.Errorf("dialogue: failed to persist state: %w", err)
	}
	st.Version = next.Version
	st.UpdatedAt = next.UpdatedAt
	return nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("dialogue: failed to read state version: %w", err)
	}
	var probe struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("dialogue: failed to decode state version: %w", err)
	}
	return probe.Version, nil
}

func (s *RedisStateStore) Delete(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "dialogue.delete_state")
	defer span.End()
	n, err := s.redis.Del(ctx, stateKey(conversationID)).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialogue: failed to delete state: %w", err)
	}
	if n == 0 {
		return ErrStateNotFound
	}
	return nil
}
