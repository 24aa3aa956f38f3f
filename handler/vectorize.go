package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

// Ingester runs the vectorization pipeline for one uploaded object.
type Ingester interface {
	Ingest(ctx context.Context, filePath, bucketName string) string
}

// VectorizeHandler turns S3 object-created events into pipeline runs.
type VectorizeHandler struct {
	pipeline Ingester
}

// NewVectorizeHandler creates the upload-event handler.
func NewVectorizeHandler(pipeline Ingester) (*VectorizeHandler, error) {
	if pipeline == nil {
		return nil, errors.New("handler: ingester must not be nil")
	}
	return &VectorizeHandler{pipeline: pipeline}, nil
}

// Handle runs the pipeline for every object in the event. The returned
// message is the last record's outcome; it is advisory only.
func (h *VectorizeHandler) Handle(ctx context.Context, ev events.S3Event) (string, error) {
	var result string
	for _, record := range ev.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		bucket := record.S3.Bucket.Name

		result = h.pipeline.Ingest(ctx, "/"+key, bucket)
		slog.Info("vectorize event processed", "bucket", bucket, "key", key, "result", result)
	}
	return result, nil
}
