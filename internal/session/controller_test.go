package session

import (
	"context"
	"testing"
	"time"

	"github.com/hsdd/triage/internal/common"
	"github.com/hsdd/triage/internal/model"
	"github.com/hsdd/triage/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagged(id string, confidence float64) model.FlaggedItem {
	return model.FlaggedItem{
		ID:             id,
		SubjectRef:     "patient-" + id,
		PredictedLabel: "label-" + id,
		Confidence:     confidence,
		Status:         model.StatusPendingReview,
		SubmittedAt:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		gatewayErr error
		name       string
		wantErrIs  error
		items      []model.FlaggedItem
		wantState  State
	}{
		{
			name:      "non-empty queue becomes ready on first item",
			items:     []model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)},
			wantState: StateReady,
		},
		{
			name:      "empty queue becomes empty",
			items:     nil,
			wantState: StateEmpty,
		},
		{
			name:       "network failure becomes error",
			gatewayErr: common.ErrNetwork,
			wantState:  StateError,
			wantErrIs:  common.ErrNetwork,
		},
		{
			name:       "forbidden response becomes error with access sentinel",
			gatewayErr: common.ErrAccessDenied,
			wantState:  StateError,
			wantErrIs:  common.ErrAccessDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewMockGateway(tt.items)
			gw.SetQueueError(tt.gatewayErr)
			c := New(gw)

			err := c.Load(context.Background())

			assert.Equal(t, tt.wantState, c.State())
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)

			if tt.wantState == StateReady {
				current, ok := c.Current()
				require.True(t, ok)
				assert.Equal(t, tt.items[0].ID, current.ID)
				// Annotations were loaded for the first item.
				assert.Equal(t, []string{tt.items[0].ID}, gw.AnnotationFetches)
			}
		})
	}
}

func TestLoadReseedsFromScratch(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.NavigateNext(context.Background()))

	require.NoError(t, c.Load(context.Background()))

	index, total := c.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, gw.FetchQueueCalls)
}

func TestNavigation(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3), flagged("c", 0.2)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.NavigateNext(context.Background()))
	current, _ := c.Current()
	assert.Equal(t, "b", current.ID)

	// Annotation store reloads for every cursor move.
	assert.Equal(t, []string{"a", "b"}, gw.AnnotationFetches)

	require.NoError(t, c.NavigateNext(context.Background()))
	assert.ErrorIs(t, c.NavigateNext(context.Background()), queue.ErrAtEnd)
	current, _ = c.Current()
	assert.Equal(t, "c", current.ID)

	// Boundary moves do not trigger reloads.
	assert.Equal(t, []string{"a", "b", "c"}, gw.AnnotationFetches)

	require.NoError(t, c.NavigatePrev(context.Background()))
	require.NoError(t, c.NavigatePrev(context.Background()))
	assert.ErrorIs(t, c.NavigatePrev(context.Background()), queue.ErrAtStart)
	current, _ = c.Current()
	assert.Equal(t, "a", current.ID)
}

func TestEmptySessionRejectsActionsWithoutGateway(t *testing.T) {
	gw := NewMockGateway(nil)
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))
	require.Equal(t, StateEmpty, c.State())

	assert.ErrorIs(t, c.NavigateNext(context.Background()), queue.ErrEmptyQueue)
	assert.ErrorIs(t, c.NavigatePrev(context.Background()), queue.ErrEmptyQueue)
	assert.ErrorIs(t, c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{}), queue.ErrEmptyQueue)

	_, err := c.SubmitAnnotationDraft(context.Background(), model.AnnotationDraft{Notes: "n"})
	assert.ErrorIs(t, err, queue.ErrEmptyQueue)

	// Only the initial fetch reached the gateway.
	assert.Equal(t, 1, gw.FetchQueueCalls)
	assert.Empty(t, gw.AnnotationFetches)
	assert.Empty(t, gw.SubmitCalls)
	assert.Empty(t, gw.SetStatusCalls)
}

func TestSubmitAnnotationDraft(t *testing.T) {
	t.Run("empty draft is rejected locally", func(t *testing.T) {
		gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4)})
		c := New(gw)
		require.NoError(t, c.Load(context.Background()))

		_, err := c.SubmitAnnotationDraft(context.Background(), model.AnnotationDraft{Notes: "   "})
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Empty(t, gw.SubmitCalls)
	})

	t.Run("submitted annotation is appended with server id", func(t *testing.T) {
		gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4)})
		c := New(gw)
		require.NoError(t, c.Load(context.Background()))

		annotation, err := c.SubmitAnnotationDraft(context.Background(), model.AnnotationDraft{
			Notes:          "likely viral",
			CorrectedLabel: "influenza",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, annotation.ID)
		assert.Equal(t, "a", annotation.ItemID)

		annotations := c.Annotations()
		require.Len(t, annotations, 1)
		assert.Equal(t, annotation.ID, annotations[0].ID)
	})

	t.Run("gateway failure leaves store unchanged", func(t *testing.T) {
		gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4)})
		gw.SetSubmitError(common.ErrNetwork)
		c := New(gw)
		require.NoError(t, c.Load(context.Background()))

		_, err := c.SubmitAnnotationDraft(context.Background(), model.AnnotationDraft{Notes: "n"})
		assert.ErrorIs(t, err, common.ErrNetwork)
		assert.Empty(t, c.Annotations())
	})
}

func TestResolveReviewedRemovesItem(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3), flagged("c", 0.2)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	before := func() int { _, total := c.Position(); return total }()
	require.NoError(t, c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{}))

	index, total := c.Position()
	assert.Equal(t, before-1, total)
	assert.Equal(t, 0, index)

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "b", current.ID)

	require.Len(t, gw.SetStatusCalls, 1)
	assert.Equal(t, MockSetStatusCall{ItemID: "a", Status: model.StatusReviewed}, gw.SetStatusCalls[0])
}

func TestResolvePendingKeepsItemAndAdvances(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Resolve(context.Background(), model.StatusPendingReview, model.AnnotationDraft{}))

	index, total := c.Position()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, index)

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "b", current.ID)

	// The resolved item kept its place with the status recorded.
	assert.Equal(t, model.StatusPendingReview, c.queue.Items()[0].Status)
}

func TestResolvePendingAtEndStaysPut(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Resolve(context.Background(), model.StatusPendingReview, model.AnnotationDraft{}))

	index, total := c.Position()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, index)
}

func TestResolveLastItemEmptiesSession(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{}))

	assert.Equal(t, StateEmpty, c.State())
	assert.Empty(t, c.Annotations())
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestResolveAnnotationFailureSkipsStatusChange(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
	gw.SetSubmitError(common.ErrNetwork)
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	err := c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{Notes: "n"})
	assert.ErrorIs(t, err, common.ErrNetwork)

	// No partial commit: the status change was never attempted and the queue
	// is untouched.
	assert.Empty(t, gw.SetStatusCalls)
	index, total := c.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 2, total)
}

func TestResolveStatusFailureLeavesQueueUntouched(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
	gw.SetStatusError(common.ErrNetwork)
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	err := c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{})
	assert.ErrorIs(t, err, common.ErrNetwork)

	index, total := c.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 2, total)
	current, _ := c.Current()
	assert.Equal(t, "a", current.ID)
	assert.Equal(t, model.StatusPendingReview, current.Status)
	assert.False(t, c.Submitting())
}

func TestResolveSucceedsWhenAnnotationReloadFails(t *testing.T) {
	tests := []struct {
		name      string
		target    model.ReviewStatus
		wantID    string
		wantTotal int
	}{
		{
			name:      "reviewed removes the item and lands on the next",
			target:    model.StatusReviewed,
			wantID:    "b",
			wantTotal: 1,
		},
		{
			name:      "pending keeps the item and advances",
			target:    model.StatusPendingReview,
			wantID:    "b",
			wantTotal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
			c := New(gw)
			require.NoError(t, c.Load(context.Background()))

			// Once the status change is confirmed the resolution is done;
			// the next item's annotations failing to load must not make it
			// look retryable.
			gw.SetAnnotationsError(common.ErrNetwork)

			require.NoError(t, c.Resolve(context.Background(), tt.target, model.AnnotationDraft{}))

			require.Len(t, gw.SetStatusCalls, 1)
			assert.Equal(t, MockSetStatusCall{ItemID: "a", Status: tt.target}, gw.SetStatusCalls[0])

			_, total := c.Position()
			assert.Equal(t, tt.wantTotal, total)
			current, ok := c.Current()
			require.True(t, ok)
			assert.Equal(t, tt.wantID, current.ID)
			assert.Empty(t, c.Annotations())
		})
	}
}

func TestResolveTimeoutAppliesNothing(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
	gw.SetBlockOnSetStatus(true)
	c := NewWithConfig(gw, Config{Timeout: 25 * time.Millisecond})
	require.NoError(t, c.Load(context.Background()))

	err := c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{})
	assert.ErrorIs(t, err, common.ErrNetwork)

	// Item status and queue membership are unchanged and the gate reopened.
	index, total := c.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 2, total)
	current, _ := c.Current()
	assert.Equal(t, model.StatusPendingReview, current.Status)
	assert.False(t, c.Submitting())

	// The next action is accepted again.
	require.NoError(t, c.NavigateNext(context.Background()))
}

func TestResolveRejectsUnknownStatus(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	err := c.Resolve(context.Background(), model.ReviewStatus("Escalated"), model.AnnotationDraft{})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, gw.SetStatusCalls)
}

func TestContinuousTriageScenario(t *testing.T) {
	// queue = [A(0.4), B(0.3), C(0.2)], cursor on A.
	gw := NewMockGateway([]model.FlaggedItem{flagged("A", 0.4), flagged("B", 0.3), flagged("C", 0.2)})
	c := New(gw)
	require.NoError(t, c.Load(context.Background()))

	// Resolve A as Reviewed: queue=[B,C], cursor on B.
	require.NoError(t, c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{}))
	current, _ := c.Current()
	assert.Equal(t, "B", current.ID)
	index, total := c.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 2, total)

	// Resolve B as PendingReview: queue unchanged, cursor advances to C.
	require.NoError(t, c.Resolve(context.Background(), model.StatusPendingReview, model.AnnotationDraft{}))
	current, _ = c.Current()
	assert.Equal(t, "C", current.ID)
	index, total = c.Position()
	assert.Equal(t, 1, index)
	assert.Equal(t, 2, total)
	assert.Equal(t, model.StatusPendingReview, c.queue.Items()[0].Status)

	// Resolve C as Reviewed: queue=[B], cursor back on B.
	require.NoError(t, c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{}))
	current, _ = c.Current()
	assert.Equal(t, "B", current.ID)
	index, total = c.Position()
	assert.Equal(t, 0, index)
	assert.Equal(t, 1, total)
}

func TestBusyGateRejectsConcurrentMutation(t *testing.T) {
	gw := NewMockGateway([]model.FlaggedItem{flagged("a", 0.4), flagged("b", 0.3)})
	gw.SetBlockOnSetStatus(true)
	c := NewWithConfig(gw, Config{Timeout: 150 * time.Millisecond})
	require.NoError(t, c.Load(context.Background()))

	resolveDone := make(chan error, 1)
	go func() {
		resolveDone <- c.Resolve(context.Background(), model.StatusReviewed, model.AnnotationDraft{})
	}()

	// Wait for the resolve to reach the blocked gateway call.
	require.Eventually(t, c.Submitting, time.Second, 5*time.Millisecond)

	// A navigate issued while the resolution is in flight is rejected rather
	// than interleaved.
	assert.ErrorIs(t, c.NavigateNext(context.Background()), common.ErrBusy)
	assert.ErrorIs(t, c.Resolve(context.Background(), model.StatusPendingReview, model.AnnotationDraft{}), common.ErrBusy)
	_, err := c.SubmitAnnotationDraft(context.Background(), model.AnnotationDraft{Notes: "n"})
	assert.ErrorIs(t, err, common.ErrBusy)
	assert.ErrorIs(t, c.Load(context.Background()), common.ErrBusy)

	assert.ErrorIs(t, <-resolveDone, common.ErrNetwork)
	assert.False(t, c.Submitting())
}
