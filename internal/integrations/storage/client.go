// Package storage downloads uploaded documents from the S3 bucket the
// upload events fire on.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the minimal S3 interface required by Client.
// *s3.Client from aws-sdk-go-v2 satisfies this interface.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client wraps an S3 API for object retrieval.
type Client struct {
	api s3API
}

// Object is a fully downloaded storage object. Data holds the complete
// content; Close releases the underlying response body.
type Object struct {
	Key  string
	Data []byte

	body io.ReadCloser
}

// Close releases the object's underlying stream. Idempotent: repeat
// calls after a successful close are no-ops, while a failed close keeps
// the body so the caller can retry.
func (o *Object) Close() error {
	if o == nil || o.body == nil {
		return nil
	}
	if err := o.body.Close(); err != nil {
		return err
	}
	o.body = nil
	return nil
}

// New creates a Client with the given S3 API implementation.
func New(api s3API) (*Client, error) {
	if api == nil {
		return nil, errors.New("storage: api must not be nil")
	}
	return &Client{api: api}, nil
}

// Download fetches the object at key fully into memory. The caller owns
// the returned Object and must Close it.
func (c *Client) Download(ctx context.Context, bucket, key string) (*Object, error) {
	bucket = strings.TrimSpace(bucket)
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if bucket == "" || key == "" {
		return nil, errors.New("storage: bucket and key are required")
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get object %s/%s: %w", bucket, key, err)
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		_ = out.Body.Close()
		return nil, fmt.Errorf("storage: read object %s/%s: %w", bucket, key, err)
	}

	return &Object{Key: key, Data: data, body: out.Body}, nil
}
