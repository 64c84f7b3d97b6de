package session

import (
	"context"

	"github.com/hsdd/triage/internal/model"
)

// Gateway defines the contract for the portal sync boundary that persists
// annotations and status changes and supplies the flagged queue. Transport
// and encoding belong to the implementation; errors must wrap the sentinels
// in internal/common so the controller can classify them.
type Gateway interface {
	FetchQueue(ctx context.Context) ([]model.FlaggedItem, error)
	FetchAnnotations(ctx context.Context, itemID string) ([]model.Annotation, error)
	SubmitAnnotation(ctx context.Context, itemID string, draft model.AnnotationDraft) (model.Annotation, error)
	SetStatus(ctx context.Context, itemID string, status model.ReviewStatus) error
}
