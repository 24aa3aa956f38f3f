package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB API covering the
// access patterns the Client uses: key lookups, prefix queries with
// pagination, the byUser GSI query, SET-only update expressions and
// transactional put/delete batches. It enforces the service's 100-item
// transaction cap.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue

	// pageSize caps the items served per Query call, forcing callers
	// through LastEvaluatedKey like a size-limited response page would.
	pageSize int

	getErr      error
	putErr      error
	updateErr   error
	deleteErr   error
	queryErr    error
	transactErr error

	transactCalls int
	queryCalls    int
	lastUpdate    *dynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk, _ := item["PK"].(*types.AttributeValueMemberS)
	sk, _ := item["SK"].(*types.AttributeValueMemberS)
	return pk.Value + "|" + sk.Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	key := itemKey(in.Key)
	item, ok := f.items[key]
	if !ok {
		item = map[string]types.AttributeValue{}
		for k, v := range in.Key {
			item[k] = v
		}
	}
	for _, clause := range strings.Split(strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET "), ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		name := parts[0]
		if mapped, ok := in.ExpressionAttributeNames[name]; ok {
			name = mapped
		}
		item[name] = in.ExpressionAttributeValues[parts[1]]
	}
	f.items[key] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var matched []map[string]types.AttributeValue
	var sortKey string
	if in.IndexName != nil {
		uid := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS).Value
		for _, item := range f.items {
			if gsi, ok := item["gsi1pk"].(*types.AttributeValueMemberS); ok && gsi.Value == uid {
				matched = append(matched, item)
			}
		}
		sortKey = "gsi1sk"
	} else {
		pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
		prefix := in.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value
		for key, item := range f.items {
			if strings.HasPrefix(key, pk+"|"+prefix) {
				matched = append(matched, item)
			}
		}
		sortKey = "SK"
	}

	sort.Slice(matched, func(i, j int) bool {
		a := matched[i][sortKey].(*types.AttributeValueMemberS).Value
		b := matched[j][sortKey].(*types.AttributeValueMemberS).Value
		return a < b
	})
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if start, ok := in.ExclusiveStartKey["SK"].(*types.AttributeValueMemberS); ok {
		for i, item := range matched {
			if item["SK"].(*types.AttributeValueMemberS).Value == start.Value {
				matched = matched[i+1:]
				break
			}
		}
	}

	page := len(matched)
	if in.Limit != nil && int(*in.Limit) < page {
		page = int(*in.Limit)
	}
	if f.pageSize > 0 && f.pageSize < page {
		page = f.pageSize
	}

	out := &dynamodb.QueryOutput{Count: int32(page)}
	if page < len(matched) {
		last := matched[page-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"PK": last["PK"],
			"SK": last["SK"],
		}
	}
	if in.Select != types.SelectCount {
		out.Items = matched[:page]
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactCalls++
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	if len(in.TransactItems) > 100 {
		return nil, fmt.Errorf("ValidationException: member must have length less than or equal to 100, got %d", len(in.TransactItems))
	}
	for _, item := range in.TransactItems {
		switch {
		case item.Put != nil:
			f.items[itemKey(item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(f.items, itemKey(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
