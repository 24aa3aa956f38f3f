package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"docchat-agent/internal/domain"
	"docchat-agent/internal/integrations/storage"
	"docchat-agent/internal/pathinfo"
)

const (
	releaseMaxAttempts = 5
	releaseBackoff     = 1 * time.Second
)

// admittedExtensions is the gate for indexing: the document and text
// formats the indexing service accepts. Deliberately distinct from the
// coarse display kinds in pathinfo.
var admittedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".pptx": true, ".ppt": true,
	".xlsx": true, ".xls": true, ".txt": true, ".rtf": true, ".odt": true,
	".ods": true, ".odp": true, ".csv": true, ".tsv": true, ".json": true,
	".xml": true, ".html": true, ".htm": true, ".md": true, ".markdown": true,
	".tex": true, ".latex": true, ".epub": true, ".mobi": true, ".azw3": true,
}

// ObjectStorage is the storage-backend surface the pipeline downloads from.
type ObjectStorage interface {
	Download(ctx context.Context, bucket, key string) (*storage.Object, error)
}

// IndexingService wraps the external indexing/search service's
// operations behind the minimal interface the pipeline and the deletion
// flow consume.
type IndexingService interface {
	UploadFile(ctx context.Context, fileName string, content io.Reader) (string, error)
	CreateVectorStore(ctx context.Context, userID string) (string, error)
	AttachFile(ctx context.Context, vectorStoreID, fileID string) error
	RetrieveFileStatus(ctx context.Context, vectorStoreID, fileID string) (status, lastError string, err error)
	DeleteFile(ctx context.Context, fileID string) error
	DetachFile(ctx context.Context, vectorStoreID, fileID string) error
	DeleteVectorStore(ctx context.Context, vectorStoreID string) error
}

// VectorizeService runs the upload-to-indexed pipeline for one file per
// invocation. It holds no state between events; every run rehydrates
// from the document store.
type VectorizeService struct {
	storage ObjectStorage
	index   IndexingService
	records StatusStore

	reporter  statusReporter
	poll      poller
	sleep     func(time.Duration)
	releaseFn func(*storage.Object)
}

// PipelineOption tunes a VectorizeService.
type PipelineOption func(*VectorizeService)

// WithPollTiming overrides the indexing poll interval and ceiling.
func WithPollTiming(interval, ceiling time.Duration) PipelineOption {
	return func(s *VectorizeService) {
		s.poll = newPoller(interval, ceiling)
	}
}

// withSleep replaces the wait functions. Tests use this to run the poll
// loop and release retries without real time.
func withSleep(sleep func(time.Duration)) PipelineOption {
	return func(s *VectorizeService) {
		s.sleep = sleep
		s.poll.sleep = sleep
	}
}

// withRelease replaces the object release function. Tests use this to
// observe when the downloaded object is let go.
func withRelease(release func(*storage.Object)) PipelineOption {
	return func(s *VectorizeService) {
		s.releaseFn = release
	}
}

// NewVectorizeService wires the pipeline's collaborators.
func NewVectorizeService(st ObjectStorage, idx IndexingService, records StatusStore, opts ...PipelineOption) (*VectorizeService, error) {
	if st == nil {
		return nil, errors.New("usecase: object storage must not be nil")
	}
	if idx == nil {
		return nil, errors.New("usecase: indexing service must not be nil")
	}
	if records == nil {
		return nil, errors.New("usecase: status store must not be nil")
	}
	s := &VectorizeService{
		storage:  st,
		index:    idx,
		records:  records,
		reporter: statusReporter{store: records},
		poll:     newPoller(defaultPollInterval, defaultPollCeiling),
		sleep:    time.Sleep,
	}
	s.releaseFn = s.release
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest runs the complete vectorization pipeline for one uploaded
// object. It never returns an error: every outcome is encoded in the
// returned message and in the side-effected status record.
func (s *VectorizeService) Ingest(ctx context.Context, filePath, bucketName string) string {
	userID := pathinfo.UserID(filePath)
	fileName := pathinfo.FileName(filePath)
	extension := pathinfo.Extension(fileName)
	kind := pathinfo.DetectKind(extension)

	slog.Info("vectorize pipeline started",
		"fileName", fileName,
		"userId", userID,
		"path", filePath,
		"bucket", bucketName,
		"kind", kind,
	)

	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:   domain.StateUploading,
		Progress: progress(0),
	})

	if !admittedExtensions[extension] {
		msg := "File type not supported by the indexing service. Supported types: " + admittedExtensionList()
		s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
			Status:       domain.StateFailed,
			ErrorMessage: msg,
		})
		return fmt.Sprintf("%s (%s) - %s", fileName, kind, msg)
	}

	if err := s.process(ctx, userID, fileName, filePath, bucketName); err != nil {
		msg := "Vector store processing failed: " + err.Error()
		slog.Error("vectorize pipeline failed", "fileName", fileName, "userId", userID, "err", err)
		s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
			Status:       domain.StateFailed,
			ErrorMessage: msg,
		})
		return fmt.Sprintf("%s (%s) - %s", fileName, kind, msg)
	}

	return fmt.Sprintf("%s (%s) - vector store pipeline successful, file vectorized and indexed", fileName, kind)
}

// process runs stages 3-9. Any returned error is converted into the
// failed status record by Ingest.
func (s *VectorizeService) process(ctx context.Context, userID, fileName, filePath, bucketName string) error {
	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:   domain.StateProcessing,
		Progress: progress(20),
	})
	obj, err := s.storage.Download(ctx, bucketName, filePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", filePath, err)
	}
	defer s.releaseFn(obj)

	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:   domain.StateProcessing,
		Progress: progress(40),
	})
	fileID, err := s.index.UploadFile(ctx, fileName, bytes.NewReader(obj.Data))
	// The object's payload is handed off once the upload returns, on
	// either path; release it now rather than across the indexing poll.
	// Close is idempotent, so the deferred release stays as a backstop.
	s.releaseFn(obj)
	if err != nil {
		return fmt.Errorf("register %s with indexing service: %w", fileName, err)
	}

	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:   domain.StateVectorizing,
		Progress: progress(60),
	})
	vectorStoreID, err := s.resolveVectorStore(ctx, userID)
	if err != nil {
		return err
	}

	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:   domain.StateVectorizing,
		Progress: progress(80),
		FileID:   fileID,
	})
	if err := s.index.AttachFile(ctx, vectorStoreID, fileID); err != nil {
		return fmt.Errorf("attach %s to vector store %s: %w", fileID, vectorStoreID, err)
	}

	if err := s.poll.await(ctx, func(ctx context.Context) (string, string, error) {
		return s.index.RetrieveFileStatus(ctx, vectorStoreID, fileID)
	}); err != nil {
		return err
	}

	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:        domain.StateVectorizing,
		Progress:      progress(90),
		FileID:        fileID,
		VectorStoreID: vectorStoreID,
	})
	if err := s.records.AppendVectorStoreID(ctx, userID, vectorStoreID); err != nil {
		return fmt.Errorf("record vector store linkage: %w", err)
	}

	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{
		Status:        domain.StateCompleted,
		Progress:      progress(100),
		FileID:        fileID,
		VectorStoreID: vectorStoreID,
	})
	return nil
}

// resolveVectorStore reuses the first registered store for the user, or
// creates a new one. Always yields a usable id; may create a redundant
// store when two first uploads for a brand-new user race.
func (s *VectorizeService) resolveVectorStore(ctx context.Context, userID string) (string, error) {
	ids, err := s.records.GetVectorStoreIDs(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read vector store registry: %w", err)
	}
	if len(ids) > 0 {
		return ids[0], nil
	}
	id, err := s.index.CreateVectorStore(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	return id, nil
}

// release closes the downloaded object, retrying a few times before
// giving up silently. Degraded cleanup never escalates to a run failure.
func (s *VectorizeService) release(obj *storage.Object) {
	for attempt := 1; attempt <= releaseMaxAttempts; attempt++ {
		err := obj.Close()
		if err == nil {
			return
		}
		slog.Warn("releasing downloaded object failed", "key", obj.Key, "attempt", attempt, "err", err)
		if attempt < releaseMaxAttempts {
			s.sleep(releaseBackoff)
		}
	}
	slog.Warn("giving up releasing downloaded object", "key", obj.Key, "attempts", releaseMaxAttempts)
}

func admittedExtensionList() string {
	exts := make([]string, 0, len(admittedExtensions))
	for ext := range admittedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
