package usecase

import (
	"context"
	"log/slog"

	"docchat-agent/internal/domain"
)

// StatusStore is the document-store surface the pipeline and deletion
// flows need for status records and the vector store registry.
type StatusStore interface {
	MergeStatus(ctx context.Context, userID, fileName string, upd domain.StatusUpdate) error
	GetStatus(ctx context.Context, userID, fileName string) (*domain.ProcessingStatus, error)
	DeleteStatus(ctx context.Context, userID, fileName string) error
	GetVectorStoreIDs(ctx context.Context, userID string) ([]string, error)
	AppendVectorStoreID(ctx context.Context, userID, vectorStoreID string) error
	RemoveVectorStoreID(ctx context.Context, userID, vectorStoreID string) error
}

// statusReporter issues fire-and-forget status writes. A lost progress
// update is logged and swallowed; it must never abort the stage that
// produced it.
type statusReporter struct {
	store StatusStore
}

func (r statusReporter) report(ctx context.Context, userID, fileName string, upd domain.StatusUpdate) {
	if err := r.store.MergeStatus(ctx, userID, fileName, upd); err != nil {
		slog.Warn("status update failed",
			"userId", userID,
			"fileName", fileName,
			"status", upd.Status,
			"err", err,
		)
	}
}

func progress(pct int) *int {
	return &pct
}
