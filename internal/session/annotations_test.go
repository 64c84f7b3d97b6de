package session

import (
	"context"
	"testing"

	"github.com/hsdd/triage/internal/common"
	"github.com/hsdd/triage/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationStoreLoad(t *testing.T) {
	gw := NewMockGateway(nil)
	gw.SeedAnnotations("item-1", []model.Annotation{
		{ID: "anno-a", ItemID: "item-1", Notes: "first"},
		{ID: "anno-b", ItemID: "item-1", Notes: "second"},
	})
	store := NewAnnotationStore(gw)

	require.NoError(t, store.Load(context.Background(), "item-1"))
	annotations := store.Annotations()
	require.Len(t, annotations, 2)
	assert.Equal(t, "anno-a", annotations[0].ID)

	// Loading another item replaces the contents entirely.
	require.NoError(t, store.Load(context.Background(), "item-2"))
	assert.Empty(t, store.Annotations())
}

func TestAnnotationStoreLoadFailureClearsStore(t *testing.T) {
	gw := NewMockGateway(nil)
	gw.SeedAnnotations("item-1", []model.Annotation{{ID: "anno-a", ItemID: "item-1"}})
	store := NewAnnotationStore(gw)
	require.NoError(t, store.Load(context.Background(), "item-1"))

	gw.SetAnnotationsError(common.ErrNetwork)
	err := store.Load(context.Background(), "item-2")
	assert.ErrorIs(t, err, common.ErrNetwork)

	// No stale annotations from the previous item survive a failed load.
	assert.Empty(t, store.Annotations())
}

func TestAnnotationStoreAppend(t *testing.T) {
	tests := []struct {
		submitErr  error
		wantErrIs  error
		name       string
		draft      model.AnnotationDraft
		wantCalls  int
		wantStored int
	}{
		{
			name:       "valid draft is submitted and appended",
			draft:      model.AnnotationDraft{Notes: "check bloodwork"},
			wantCalls:  1,
			wantStored: 1,
		},
		{
			name:       "corrected label alone is enough",
			draft:      model.AnnotationDraft{CorrectedLabel: "bronchitis"},
			wantCalls:  1,
			wantStored: 1,
		},
		{
			name:      "blank draft never reaches the gateway",
			draft:     model.AnnotationDraft{Notes: "  ", CorrectedLabel: "\t"},
			wantErrIs: common.ErrValidation,
		},
		{
			name:      "gateway failure leaves the store unchanged",
			draft:     model.AnnotationDraft{Notes: "n"},
			submitErr: common.ErrNetwork,
			wantErrIs: common.ErrNetwork,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewMockGateway(nil)
			gw.SetSubmitError(tt.submitErr)
			store := NewAnnotationStore(gw)
			require.NoError(t, store.Load(context.Background(), "item-1"))

			annotation, err := store.Append(context.Background(), tt.draft)

			assert.Len(t, gw.SubmitCalls, tt.wantCalls)
			assert.Len(t, store.Annotations(), tt.wantStored)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, annotation.ID)
			assert.Equal(t, "item-1", annotation.ItemID)
		})
	}
}

func TestAnnotationStoreAppendWithoutItem(t *testing.T) {
	store := NewAnnotationStore(NewMockGateway(nil))

	_, err := store.Append(context.Background(), model.AnnotationDraft{Notes: "n"})
	assert.ErrorIs(t, err, common.ErrValidation)
}
