// Package repository implements the document store on a single DynamoDB
// table. Sessions and their turn sub-collection share a partition
// (SESSION#id), per-user records (processing status, vector store
// registry) share another (USER#id). A GSI keyed by userId with an
// updatedAt range serves the list-sessions-by-recency query.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxTransactItems is DynamoDB's cap on items per TransactWriteItems
// call. Turn deletes are chunked under it.
const maxTransactItems = 100

const (
	pkPrefixSession = "SESSION#"
	pkPrefixUser    = "USER#"
	skMeta          = "META#"
	skPrefixTurn    = "TURN#"
	skPrefixFile    = "FILE#"
	skRegistry      = "VSTORE#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps the DynamoDB table holding sessions, turns, processing
// status records and the per-user vector store registry.
type Client struct {
	api         dynamodbAPI
	tableName   string
	byUserIndex string
}

// New creates a repository Client. byUserIndex is the name of the GSI
// serving session listing by user.
func New(api dynamodbAPI, tableName, byUserIndex string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if strings.TrimSpace(byUserIndex) == "" {
		return nil, errors.New("repository: by-user index name must not be empty")
	}
	return &Client{api: api, tableName: tableName, byUserIndex: byUserIndex}, nil
}

func sessionPK(sessionID string) string {
	return pkPrefixSession + sessionID
}

func userPK(userID string) string {
	return pkPrefixUser + userID
}

// timeLayout is RFC3339 with a fixed nanosecond width. RFC3339Nano
// drops trailing zeros, which breaks lexicographic ordering of the turn
// sort keys and the GSI range key; the fixed width keeps formatted
// times sorting in timestamp order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// turnSK builds the sort key carrying a turn's createdAt.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(timeLayout)
}

func fileSK(fileName string) string {
	return skPrefixFile + fileName
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// optStrAttr reads a string attribute, tolerating absence.
func optStrAttr(item map[string]types.AttributeValue, key string) string {
	s, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return s.Value
}

func optIntAttr(item map[string]types.AttributeValue, key string) int {
	n, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0
	}
	return parsed
}

func optTimeAttr(item map[string]types.AttributeValue, key string) time.Time {
	return parseTime(optStrAttr(item, key))
}

func strListAttr(item map[string]types.AttributeValue, key string) []string {
	l, ok := item[key].(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Value))
	for _, v := range l.Value {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}

func strListValue(values []string) types.AttributeValue {
	members := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		members = append(members, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: members}
}
