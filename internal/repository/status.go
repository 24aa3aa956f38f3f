package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"docchat-agent/internal/domain"
)

// MergeStatus applies one update to the (userID, fileName) processing
// status record, setting only the fields the update carries. The record
// is created when absent. startedAt is stamped when the status enters
// uploading or deleting, completedAt on the terminal states.
func (c *Client) MergeStatus(ctx context.Context, userID, fileName string, upd domain.StatusUpdate) error {
	now := formatTime(time.Now())

	sets := []string{
		"userId = :userId",
		"fileName = :fileName",
		"#status = :status",
		"updatedAt = :updatedAt",
	}
	values := map[string]types.AttributeValue{
		":userId":    &types.AttributeValueMemberS{Value: userID},
		":fileName":  &types.AttributeValueMemberS{Value: fileName},
		":status":    &types.AttributeValueMemberS{Value: string(upd.Status)},
		":updatedAt": &types.AttributeValueMemberS{Value: now},
	}

	if upd.ErrorMessage != "" {
		sets = append(sets, "errorMessage = :errorMessage")
		values[":errorMessage"] = &types.AttributeValueMemberS{Value: upd.ErrorMessage}
	}
	if upd.Progress != nil {
		sets = append(sets, "progressPercentage = :progress")
		values[":progress"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*upd.Progress)}
	}
	if upd.FileID != "" {
		sets = append(sets, "fileId = :fileId")
		values[":fileId"] = &types.AttributeValueMemberS{Value: upd.FileID}
	}
	if upd.VectorStoreID != "" {
		sets = append(sets, "vectorStoreId = :vectorStoreId")
		values[":vectorStoreId"] = &types.AttributeValueMemberS{Value: upd.VectorStoreID}
	}
	switch upd.Status {
	case domain.StateUploading, domain.StateDeleting:
		sets = append(sets, "startedAt = :startedAt")
		values[":startedAt"] = &types.AttributeValueMemberS{Value: now}
	case domain.StateCompleted, domain.StateFailed:
		sets = append(sets, "completedAt = :completedAt")
		values[":completedAt"] = &types.AttributeValueMemberS{Value: now}
	}

	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: fileSK(fileName)},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("repository: MergeStatus %s/%s: %w", userID, fileName, err)
	}
	return nil
}

// GetStatus reads a processing status record, returning nil when absent.
func (c *Client) GetStatus(ctx context.Context, userID, fileName string) (*domain.ProcessingStatus, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: fileSK(fileName)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetStatus: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	return &domain.ProcessingStatus{
		UserID:             optStrAttr(out.Item, "userId"),
		FileName:           optStrAttr(out.Item, "fileName"),
		Status:             domain.ProcessingState(optStrAttr(out.Item, "status")),
		ProgressPercentage: optIntAttr(out.Item, "progressPercentage"),
		ErrorMessage:       optStrAttr(out.Item, "errorMessage"),
		FileID:             optStrAttr(out.Item, "fileId"),
		VectorStoreID:      optStrAttr(out.Item, "vectorStoreId"),
		StartedAt:          optTimeAttr(out.Item, "startedAt"),
		CompletedAt:        optTimeAttr(out.Item, "completedAt"),
		UpdatedAt:          optTimeAttr(out.Item, "updatedAt"),
	}, nil
}

// DeleteStatus removes a processing status record after cleanup succeeds.
func (c *Client) DeleteStatus(ctx context.Context, userID, fileName string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: fileSK(fileName)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteStatus: %w", err)
	}
	return nil
}

// GetVectorStoreIDs returns the user's registered vector store ids in
// registration order. An absent registry reads as empty.
func (c *Client) GetVectorStoreIDs(ctx context.Context, userID string) ([]string, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: skRegistry},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetVectorStoreIDs: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return strListAttr(out.Item, "vectorStoreIds"), nil
}

// AppendVectorStoreID adds an id to the user's registry when not already
// present. Read-modify-write without a condition; upload events arrive
// serialized per user upstream.
func (c *Client) AppendVectorStoreID(ctx context.Context, userID, vectorStoreID string) error {
	ids, err := c.GetVectorStoreIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("repository: AppendVectorStoreID read: %w", err)
	}
	for _, id := range ids {
		if id == vectorStoreID {
			return nil
		}
	}
	return c.putRegistry(ctx, userID, append(ids, vectorStoreID))
}

// RemoveVectorStoreID drops an id from the user's registry. Removing an
// id that is not registered is a no-op.
func (c *Client) RemoveVectorStoreID(ctx context.Context, userID, vectorStoreID string) error {
	ids, err := c.GetVectorStoreIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("repository: RemoveVectorStoreID read: %w", err)
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != vectorStoreID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}
	return c.putRegistry(ctx, userID, kept)
}

func (c *Client) putRegistry(ctx context.Context, userID string, ids []string) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK":             &types.AttributeValueMemberS{Value: skRegistry},
			"userId":         &types.AttributeValueMemberS{Value: userID},
			"vectorStoreIds": strListValue(ids),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: write registry for %s: %w", userID, err)
	}
	return nil
}
