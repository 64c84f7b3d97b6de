package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hsdd/triage/internal/model"
)

// MockGateway is a test implementation of the Gateway interface. It serves a
// canned queue and annotation set and records every call it receives.
type MockGateway struct {
	queueErr          error
	annotationsErr    error
	submitErr         error
	setStatusErr      error
	annotations       map[string][]model.Annotation
	AnnotationFetches []string
	queue             []model.FlaggedItem
	SubmitCalls       []MockSubmitCall
	SetStatusCalls    []MockSetStatusCall
	FetchQueueCalls   int
	nextAnnotationID  int
	mu                sync.Mutex
	blockOnSetStatus  bool
}

// MockSubmitCall records one SubmitAnnotation request.
type MockSubmitCall struct {
	ItemID string
	Draft  model.AnnotationDraft
}

// MockSetStatusCall records one SetStatus request.
type MockSetStatusCall struct {
	ItemID string
	Status model.ReviewStatus
}

// NewMockGateway creates a mock gateway serving the given queue.
func NewMockGateway(items []model.FlaggedItem) *MockGateway {
	return &MockGateway{
		queue:       items,
		annotations: make(map[string][]model.Annotation),
	}
}

// SetQueueError makes FetchQueue fail with err.
func (m *MockGateway) SetQueueError(err error) { m.queueErr = err }

// SetAnnotationsError makes FetchAnnotations fail with err.
func (m *MockGateway) SetAnnotationsError(err error) { m.annotationsErr = err }

// SetSubmitError makes SubmitAnnotation fail with err.
func (m *MockGateway) SetSubmitError(err error) { m.submitErr = err }

// SetStatusError makes SetStatus fail with err.
func (m *MockGateway) SetStatusError(err error) { m.setStatusErr = err }

// SetBlockOnSetStatus makes SetStatus block until its context expires,
// simulating a call that times out mid-resolution.
func (m *MockGateway) SetBlockOnSetStatus(block bool) { m.blockOnSetStatus = block }

// SeedAnnotations preloads annotations for an item.
func (m *MockGateway) SeedAnnotations(itemID string, annotations []model.Annotation) {
	m.annotations[itemID] = annotations
}

// FetchQueue returns the canned queue.
func (m *MockGateway) FetchQueue(_ context.Context) ([]model.FlaggedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchQueueCalls++
	if m.queueErr != nil {
		return nil, m.queueErr
	}
	out := make([]model.FlaggedItem, len(m.queue))
	copy(out, m.queue)
	return out, nil
}

// FetchAnnotations returns the canned annotations for itemID.
func (m *MockGateway) FetchAnnotations(_ context.Context, itemID string) ([]model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AnnotationFetches = append(m.AnnotationFetches, itemID)
	if m.annotationsErr != nil {
		return nil, m.annotationsErr
	}
	out := make([]model.Annotation, len(m.annotations[itemID]))
	copy(out, m.annotations[itemID])
	return out, nil
}

// SubmitAnnotation records the call and returns a server-style annotation
// with a freshly assigned ID.
func (m *MockGateway) SubmitAnnotation(_ context.Context, itemID string, draft model.AnnotationDraft) (model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SubmitCalls = append(m.SubmitCalls, MockSubmitCall{ItemID: itemID, Draft: draft})
	if m.submitErr != nil {
		return model.Annotation{}, m.submitErr
	}

	m.nextAnnotationID++
	annotation := model.Annotation{
		ID:             fmt.Sprintf("anno-%d", m.nextAnnotationID),
		ItemID:         itemID,
		AuthorRef:      "dr-mock",
		Notes:          draft.Notes,
		CorrectedLabel: draft.CorrectedLabel,
	}
	m.annotations[itemID] = append(m.annotations[itemID], annotation)
	return annotation, nil
}

// SetStatus records the call and applies it to the canned queue.
func (m *MockGateway) SetStatus(ctx context.Context, itemID string, status model.ReviewStatus) error {
	if m.blockOnSetStatus {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetStatusCalls = append(m.SetStatusCalls, MockSetStatusCall{ItemID: itemID, Status: status})
	if m.setStatusErr != nil {
		return m.setStatusErr
	}
	for i := range m.queue {
		if m.queue[i].ID == itemID {
			m.queue[i].Status = status
		}
	}
	return nil
}
