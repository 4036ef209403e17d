package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type dynamoRecord struct {
	State
	ExpiresAt int64 `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStateStore keeps state in a DynamoDB table keyed by conversationId.
// The table's TTL attribute is expiresAt.
type DynamoStateStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

var _ StateStore = (*DynamoStateStore)(nil)

func NewDynamoStateStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStateStore {
	if client == nil {
		panic("dialogue: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("dialogue: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStateStore{client: client, tableName: tableName, ttl: ttl, logger: logger, now: time.Now}
}

func (s *DynamoStateStore) key(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}
}

func (s *DynamoStateStore) Load(ctx context.Context, conversationID string) (*State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue: failed to fetch state: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("dialogue: failed to decode state: %w", err)
	}
	if rec.ExpiresAt > 0 && s.now().Unix() >= rec.ExpiresAt {
		// TTL deletion is lazy in DynamoDB.
		return nil, nil
	}
	return &rec.State, nil
}

func (s *DynamoStateStore) Save(ctx context.Context, st *State) error {
	if st == nil {
		return nil
	}
	now := s.now().UTC()
	rec := dynamoRecord{State: *st.Clone(), ExpiresAt: now.Add(s.ttl).Unix()}
	rec.Version = st.Version + 1
	rec.UpdatedAt = now

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("dialogue: failed to marshal state: %w", err)
	}
	// An expired record that TTL has not removed yet counts as absent.
	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(conversationId) OR expiresAt <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	}
	if st.Version > 0 {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(st.Version, 10)},
		}
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			s.logger.Debug("dialogue state version conflict", "conversation_id", st.ConversationID, "version", st.Version)
			return ErrStaleState
		}
		return fmt.Errorf("dialogue: failed to persist state: %w", err)
	}
	st.Version = rec.Version
	st.UpdatedAt = now
	return nil
}

func (s *DynamoStateStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(conversationID),
		ConditionExpression: aws.String("attribute_exists(conversationId)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStateNotFound
		}
		return fmt.Errorf("dialogue: failed to delete state: %w", err)
	}
	return nil
}
