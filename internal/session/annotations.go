package session

import (
	"context"
	"fmt"

	"github.com/hsdd/triage/internal/common"
	"github.com/hsdd/triage/internal/model"
)

// AnnotationStore holds the annotations for the currently selected flagged
// item and mediates their creation. Contents are scoped to one item at a
// time: Load replaces everything, and a failed Load leaves the store empty so
// stale notes from a previous item are never shown.
type AnnotationStore struct {
	gateway     Gateway
	itemID      string
	annotations []model.Annotation
}

// NewAnnotationStore creates an empty store backed by the given gateway.
func NewAnnotationStore(gateway Gateway) *AnnotationStore {
	return &AnnotationStore{gateway: gateway}
}

// Load replaces the store's contents with the annotations recorded for
// itemID. On failure the store is cleared and the error surfaced.
func (s *AnnotationStore) Load(ctx context.Context, itemID string) error {
	s.itemID = itemID
	s.annotations = nil

	annotations, err := s.gateway.FetchAnnotations(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to load annotations for item %s: %w", itemID, err)
	}

	s.annotations = annotations
	return nil
}

// Append validates and submits a draft for the currently loaded item. On
// success the gateway-assigned record is appended locally and returned; on
// failure the store is unchanged and the caller decides whether to retry.
func (s *AnnotationStore) Append(ctx context.Context, draft model.AnnotationDraft) (model.Annotation, error) {
	if s.itemID == "" {
		return model.Annotation{}, fmt.Errorf("%w: no item selected", common.ErrValidation)
	}
	if draft.Empty() {
		return model.Annotation{}, fmt.Errorf("%w: annotation needs notes or a corrected label", common.ErrValidation)
	}

	annotation, err := s.gateway.SubmitAnnotation(ctx, s.itemID, draft)
	if err != nil {
		return model.Annotation{}, fmt.Errorf("failed to submit annotation: %w", err)
	}

	s.annotations = append(s.annotations, annotation)
	return annotation, nil
}

// Clear discards the store's contents and item binding.
func (s *AnnotationStore) Clear() {
	s.itemID = ""
	s.annotations = nil
}

// Annotations returns a copy of the held annotations in creation order.
func (s *AnnotationStore) Annotations() []model.Annotation {
	out := make([]model.Annotation, len(s.annotations))
	copy(out, s.annotations)
	return out
}
