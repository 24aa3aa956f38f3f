package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docchat-agent/internal/domain"
)

// DocumentService removes indexed documents: the file resource at the
// indexing service, its vector store membership, and the local status
// record.
type DocumentService struct {
	records  StatusStore
	index    IndexingService
	reporter statusReporter
}

// DeletedDocument reports the external handles a deletion released.
type DeletedDocument struct {
	FileID        string
	VectorStoreID string
}

// NewDocumentService wires the deletion flow's collaborators.
func NewDocumentService(records StatusStore, index IndexingService) (*DocumentService, error) {
	if records == nil {
		return nil, errors.New("usecase: status store must not be nil")
	}
	if index == nil {
		return nil, errors.New("usecase: indexing service must not be nil")
	}
	return &DocumentService{
		records:  records,
		index:    index,
		reporter: statusReporter{store: records},
	}, nil
}

// Delete removes a previously indexed file. The status record names the
// external handles; detaching from the vector store is best-effort,
// deleting the file resource is not. The status record itself is
// removed once cleanup succeeds (best-effort as well).
func (s *DocumentService) Delete(ctx context.Context, userID, fileName string) (DeletedDocument, error) {
	s.reporter.report(ctx, userID, fileName, domain.StatusUpdate{Status: domain.StateDeleting})

	status, err := s.records.GetStatus(ctx, userID, fileName)
	if err != nil {
		return DeletedDocument{}, newError(ErrorInternal, "status_read_error", err)
	}
	if status == nil {
		return DeletedDocument{}, newError(ErrorNotFound, "status_not_found",
			fmt.Errorf("no processing status found for file %s", fileName))
	}
	if status.FileID == "" {
		return DeletedDocument{}, newError(ErrorNotFound, "file_handle_missing",
			fmt.Errorf("no indexing file id recorded for %s", fileName))
	}

	if status.VectorStoreID != "" {
		if err := s.index.DetachFile(ctx, status.VectorStoreID, status.FileID); err != nil {
			// The file resource can still be deleted; carry on.
			slog.Warn("detaching file from vector store failed",
				"fileId", status.FileID,
				"vectorStoreId", status.VectorStoreID,
				"err", err,
			)
		}
	}

	if err := s.index.DeleteFile(ctx, status.FileID); err != nil {
		return DeletedDocument{}, newError(ErrorUpstream, "file_delete_error", err)
	}

	if err := s.records.DeleteStatus(ctx, userID, fileName); err != nil {
		slog.Warn("deleting processing status failed", "userId", userID, "fileName", fileName, "err", err)
	}

	return DeletedDocument{FileID: status.FileID, VectorStoreID: status.VectorStoreID}, nil
}

// DeleteVectorStore removes an entire vector store and drops its id
// from the user's registry.
func (s *DocumentService) DeleteVectorStore(ctx context.Context, userID, vectorStoreID string) error {
	if err := s.index.DeleteVectorStore(ctx, vectorStoreID); err != nil {
		return newError(ErrorUpstream, "vector_store_delete_error", err)
	}
	if err := s.records.RemoveVectorStoreID(ctx, userID, vectorStoreID); err != nil {
		return newError(ErrorInternal, "registry_update_error", err)
	}
	return nil
}
