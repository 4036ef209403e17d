package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const calendarDirectoryKey = "merchant_calendar_ids"

// ProfileStore handles merchant profile persistence in Redis.
type ProfileStore struct {
	redis *redis.Client
}

// NewProfileStore creates a new profile store.
func NewProfileStore(redisClient *redis.Client) *ProfileStore {
	return &ProfileStore{redis: redisClient}
}

func (s *ProfileStore) key(merchantID string) string {
	return fmt.Sprintf("merchant_profile:%s", merchantID)
}

// Get retrieves the profile for a merchant. A missing profile yields defaults.
func (s *ProfileStore) Get(ctx context.Context, merchantID string) (*Profile, error) {
	data, err := s.redis.Get(ctx, s.key(merchantID)).Bytes()
	if err == redis.Nil {
		return DefaultProfile(merchantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal profile: %w", err)
	}
	if p.MerchantID == "" {
		p.MerchantID = merchantID
	}
	return &p, nil
}

// Set saves the profile.
func (s *ProfileStore) Set(ctx context.Context, p *Profile) error {
	if p == nil || p.MerchantID == "" {
		return fmt.Errorf("catalog: profile merchant id required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("catalog: marshal profile: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(p.MerchantID), data, 0)
	for resourceID, calendarID := range p.CalendarIDs {
		pipe.HSet(ctx, calendarDirectoryKey, resourceID, calendarID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("catalog: set profile: %w", err)
	}
	return nil
}

// CalendarID returns the external calendar linked to a resource (staff id or merchant id).
func (s *ProfileStore) CalendarID(ctx context.Context, resourceID string) (string, bool, error) {
	id, err := s.redis.HGet(ctx, calendarDirectoryKey, resourceID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("catalog: calendar id: %w", err)
	}
	return id, id != "", nil
}
