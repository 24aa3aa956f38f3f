package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"docchat-agent/internal/domain"
)

// PutSession writes a new session record.
func (c *Client) PutSession(ctx context.Context, sess domain.Session) error {
	if sess.SessionID == "" || sess.UserID == "" {
		return errors.New("repository: PutSession: sessionId and userId are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      sessionItem(sess),
	})
	if err != nil {
		return fmt.Errorf("repository: PutSession: %w", err)
	}
	return nil
}

// GetSession reads a session record, returning nil when it does not exist.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetSession: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	sess, err := itemToSession(out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: GetSession unmarshal: %w", err)
	}
	return &sess, nil
}

// TouchSession bumps a session's updatedAt (and its GSI shadow).
func (c *Client) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	return c.updateSessionAttrs(ctx, sessionID, map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberS{Value: formatTime(at)},
	}, "SET updatedAt = :updatedAt, gsi1sk = :updatedAt")
}

// SetSessionName writes the generated name onto a session and bumps updatedAt.
func (c *Client) SetSessionName(ctx context.Context, sessionID, name string, at time.Time) error {
	return c.updateSessionAttrs(ctx, sessionID, map[string]types.AttributeValue{
		":name":      &types.AttributeValueMemberS{Value: name},
		":updatedAt": &types.AttributeValueMemberS{Value: formatTime(at)},
	}, "SET #name = :name, updatedAt = :updatedAt, gsi1sk = :updatedAt")
}

func (c *Client) updateSessionAttrs(ctx context.Context, sessionID string, values map[string]types.AttributeValue, expr string) error {
	in := &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	}
	if _, ok := values[":name"]; ok {
		// "name" is a DynamoDB reserved word.
		in.ExpressionAttributeNames = map[string]string{"#name": "name"}
	}
	_, err := c.api.UpdateItem(ctx, in)
	if err != nil {
		return fmt.Errorf("repository: update session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessionsByUser returns the user's sessions sorted by updatedAt
// descending, via the byUser GSI.
func (c *Client) ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(c.byUserIndex),
		KeyConditionExpression: aws.String("gsi1pk = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userPK(userID)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListSessionsByUser query: %w", err)
	}

	sessions := make([]domain.Session, 0, len(out.Items))
	for _, item := range out.Items {
		sess, err := itemToSession(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListSessionsByUser unmarshal: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// CountTurns returns the number of turns stored for a session,
// following pagination for sessions whose turns span query pages.
func (c *Client) CountTurns(ctx context.Context, sessionID string) (int, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		Select: types.SelectCount,
	}

	total := 0
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("repository: CountTurns query: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// DeleteSessionCascade removes every turn and the session record,
// chunked under the transaction item cap. Each chunk is atomic; the
// session record goes in the final chunk, so an interrupted delete
// leaves the session discoverable and the cascade retryable.
func (c *Client) DeleteSessionCascade(ctx context.Context, sessionID string) error {
	turnKeys, err := c.turnKeys(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("repository: DeleteSessionCascade list turns: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(turnKeys)+1)
	for _, sk := range turnKeys {
		items = append(items, deleteItem(c.tableName, sessionPK(sessionID), sk))
	}
	items = append(items, deleteItem(c.tableName, sessionPK(sessionID), skMeta))

	if err := c.transactDelete(ctx, items); err != nil {
		return fmt.Errorf("repository: DeleteSessionCascade: %w", err)
	}
	return nil
}

// transactDelete issues delete items in transactions of at most
// maxTransactItems, the service's per-call cap.
func (c *Client) transactDelete(ctx context.Context, items []types.TransactWriteItem) error {
	for start := 0; start < len(items); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(items) {
			end = len(items)
		}
		_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// turnKeys lists the sort keys of every turn in a session, following
// pagination.
func (c *Client) turnKeys(ctx context.Context, sessionID string) ([]string, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ProjectionExpression: aws.String("SK"),
	}

	var keys []string
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			sk, err := strAttr(item, "SK")
			if err != nil {
				return nil, err
			}
			keys = append(keys, sk)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return keys, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func deleteItem(table, pk, sk string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pk},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
		},
	}
}

func sessionItem(sess domain.Session) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sess.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: skMeta},
		"sessionId": &types.AttributeValueMemberS{Value: sess.SessionID},
		"userId":    &types.AttributeValueMemberS{Value: sess.UserID},
		"createdAt": &types.AttributeValueMemberS{Value: formatTime(sess.CreatedAt)},
		"updatedAt": &types.AttributeValueMemberS{Value: formatTime(sess.UpdatedAt)},
		// GSI shadow keys: only session records appear in the byUser index.
		"gsi1pk": &types.AttributeValueMemberS{Value: userPK(sess.UserID)},
		"gsi1sk": &types.AttributeValueMemberS{Value: formatTime(sess.UpdatedAt)},
	}
	if sess.Name != "" {
		item["name"] = &types.AttributeValueMemberS{Value: sess.Name}
	}
	return item
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	sessionID, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.Session{}, err
	}
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		Name:      optStrAttr(item, "name"),
		CreatedAt: optTimeAttr(item, "createdAt"),
		UpdatedAt: optTimeAttr(item, "updatedAt"),
	}, nil
}
