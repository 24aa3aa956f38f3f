package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"docchat-agent/internal/domain"
)

// turnSpacing separates the synthesized createdAt of turns appended in
// one batch, keeping the order strict even when the wall clock is
// coarser than the write rate.
const turnSpacing = 2 * time.Millisecond

// SessionStore adapts one session's turn sub-collection to the
// domain.ConversationMemory contract the agent runtime consumes.
type SessionStore struct {
	client    *Client
	userID    string
	sessionID string

	now       func() time.Time
	newTurnID func() string
}

// NewSessionStore returns the conversation memory for one (user, session)
// pair. The store holds no turn state; every call rehydrates from the table.
func NewSessionStore(client *Client, userID, sessionID string) *SessionStore {
	return &SessionStore{
		client:    client,
		userID:    userID,
		sessionID: sessionID,
		now:       time.Now,
		newTurnID: uuid.NewString,
	}
}

var _ domain.ConversationMemory = (*SessionStore)(nil)

// GetItems returns the session's turns ordered by createdAt ascending,
// capped at limit when limit > 0. Turns with an unrecognized role are
// silently dropped.
func (s *SessionStore) GetItems(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.client.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(s.sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var items []domain.ChatMessage
	fetched := 0
	for {
		if limit > 0 {
			in.Limit = aws.Int32(int32(limit - fetched))
		}
		out, err := s.client.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: GetItems query: %w", err)
		}
		fetched += len(out.Items)
		for _, item := range out.Items {
			role := optStrAttr(item, "role")
			if !domain.RecognizedRole(role) {
				continue
			}
			items = append(items, domain.ChatMessage{
				Role:    role,
				Content: optStrAttr(item, "message"),
			})
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && fetched >= limit) {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// AddItems appends the recognized-role items as one transaction. Each
// turn's createdAt is the shared base time offset by 2ms per item in
// submission order, so the batch lands in a strict total order.
// Unrecognized roles are skipped entirely.
func (s *SessionStore) AddItems(ctx context.Context, items []domain.ChatMessage) error {
	base := s.now().UTC()

	writes := make([]types.TransactWriteItem, 0, len(items))
	for i, item := range items {
		if !domain.RecognizedRole(item.Role) {
			continue
		}
		createdAt := base.Add(time.Duration(i) * turnSpacing)
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.client.tableName),
				Item: turnItem(domain.Turn{
					ID:        s.newTurnID(),
					SessionID: s.sessionID,
					UserID:    s.userID,
					Role:      item.Role,
					Message:   item.Content,
					CreatedAt: createdAt,
				}),
			},
		})
	}
	if len(writes) == 0 {
		return nil
	}

	_, err := s.client.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return fmt.Errorf("repository: AddItems: %w", err)
	}
	return nil
}

// PopItem removes and returns the most recent turn. It returns nil for
// an empty session, and nil without deleting anything when the newest
// turn carries an unrecognized role (observed behavior, kept as is).
func (s *SessionStore) PopItem(ctx context.Context) (*domain.ChatMessage, error) {
	out, err := s.client.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.client.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(s.sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: PopItem query: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	item := out.Items[0]
	role := optStrAttr(item, "role")
	if !domain.RecognizedRole(role) {
		return nil, nil
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return nil, fmt.Errorf("repository: PopItem: %w", err)
	}

	_, err = s.client.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.client.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(s.sessionID)},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: PopItem delete: %w", err)
	}

	return &domain.ChatMessage{Role: role, Content: optStrAttr(item, "message")}, nil
}

// Clear deletes every turn in the session, chunked under the
// transaction item cap.
func (s *SessionStore) Clear(ctx context.Context) error {
	keys, err := s.client.turnKeys(ctx, s.sessionID)
	if err != nil {
		return fmt.Errorf("repository: Clear list turns: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	writes := make([]types.TransactWriteItem, 0, len(keys))
	for _, sk := range keys {
		writes = append(writes, deleteItem(s.client.tableName, sessionPK(s.sessionID), sk))
	}
	if err := s.client.transactDelete(ctx, writes); err != nil {
		return fmt.Errorf("repository: Clear: %w", err)
	}
	return nil
}

func turnItem(turn domain.Turn) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(turn.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: turnSK(turn.CreatedAt)},
		"id":        &types.AttributeValueMemberS{Value: turn.ID},
		"sessionId": &types.AttributeValueMemberS{Value: turn.SessionID},
		"userId":    &types.AttributeValueMemberS{Value: turn.UserID},
		"role":      &types.AttributeValueMemberS{Value: turn.Role},
		"message":   &types.AttributeValueMemberS{Value: turn.Message},
		"createdAt": &types.AttributeValueMemberS{Value: formatTime(turn.CreatedAt)},
	}
	if turn.ClientMessageID != "" {
		item["clientMessageId"] = &types.AttributeValueMemberS{Value: turn.ClientMessageID}
	}
	return item
}
