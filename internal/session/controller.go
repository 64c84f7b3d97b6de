// Package session implements the review session state machine that ties the
// flagged queue, the annotation store, and the sync gateway into one workflow.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hsdd/triage/internal/common"
	"github.com/hsdd/triage/internal/model"
	"github.com/hsdd/triage/internal/queue"
)

// State describes where the session is in its lifecycle.
type State string

// Session states.
const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
	StateError   State = "error"
)

// Controller orchestrates one review session: load the flagged queue, page
// through it, attach annotations, and resolve items. It owns its Queue and
// AnnotationStore exclusively and is driven from a single goroutine; the
// submitting gate keeps at most one mutating gateway request in flight.
//
// The controller never logs and never retries. Every failure is returned to
// the caller wrapping one of the internal/common sentinels, and the queue is
// never mutated unless the gateway confirmed the action (all-or-nothing per
// action, including timeouts).
type Controller struct {
	gateway     Gateway
	queue       *queue.Queue
	annotations *AnnotationStore
	state       State
	timeout     time.Duration
	submitting  atomic.Bool
}

// Config holds configuration options for the session controller.
type Config struct {
	// Timeout bounds every gateway call. A call that exceeds it surfaces a
	// network error with no state applied.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// New creates a session controller with the default configuration.
func New(gateway Gateway) *Controller {
	return NewWithConfig(gateway, DefaultConfig())
}

// NewWithConfig creates a session controller with custom configuration.
func NewWithConfig(gateway Gateway, config Config) *Controller {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Controller{
		gateway:     gateway,
		queue:       queue.New(),
		annotations: NewAnnotationStore(gateway),
		state:       StateLoading,
		timeout:     config.Timeout,
	}
}

// State returns the session's lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Submitting reports whether a mutating gateway request is in flight.
func (c *Controller) Submitting() bool {
	return c.submitting.Load()
}

// Current returns the flagged item under review. The second return is false
// unless the session is Ready.
func (c *Controller) Current() (model.FlaggedItem, bool) {
	if c.state != StateReady {
		return model.FlaggedItem{}, false
	}
	return c.queue.Current()
}

// Position returns the cursor index and queue total.
func (c *Controller) Position() (index, total int) {
	return c.queue.Position()
}

// Annotations returns the annotations loaded for the current item.
func (c *Controller) Annotations() []model.Annotation {
	return c.annotations.Annotations()
}

// Load discards any prior session state and reseeds everything from the
// gateway. There is no incremental merge between sessions: the queue is
// rebuilt from scratch on every load.
func (c *Controller) Load(ctx context.Context) error {
	if c.submitting.Load() {
		return common.ErrBusy
	}

	c.state = StateLoading
	c.annotations.Clear()

	items, err := c.fetchQueue(ctx)
	if err != nil {
		c.queue.Seed(nil)
		c.state = StateError
		return err
	}

	c.queue.Seed(items)
	if len(items) == 0 {
		c.state = StateEmpty
		return nil
	}

	c.state = StateReady
	return c.loadCurrentAnnotations(ctx)
}

// NavigateNext moves the reviewer to the next flagged item and reloads its
// annotations. Any unsaved draft for the previous item is the caller's to
// discard; drafts never persist across items.
func (c *Controller) NavigateNext(ctx context.Context) error {
	return c.navigate(ctx, c.queue.Advance)
}

// NavigatePrev moves the reviewer to the previous flagged item and reloads
// its annotations.
func (c *Controller) NavigatePrev(ctx context.Context) error {
	return c.navigate(ctx, c.queue.Retreat)
}

func (c *Controller) navigate(ctx context.Context, move func() error) error {
	if c.submitting.Load() {
		return common.ErrBusy
	}
	if c.state == StateEmpty {
		return queue.ErrEmptyQueue
	}
	if c.state != StateReady {
		return fmt.Errorf("session is %s, not ready", c.state)
	}

	if err := move(); err != nil {
		// Boundary condition: cursor unchanged, nothing to reload.
		return err
	}

	return c.loadCurrentAnnotations(ctx)
}

// SubmitAnnotationDraft submits a standalone annotation for the current item
// without changing its review status.
func (c *Controller) SubmitAnnotationDraft(ctx context.Context, draft model.AnnotationDraft) (model.Annotation, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		return model.Annotation{}, common.ErrBusy
	}
	defer c.submitting.Store(false)

	if c.state == StateEmpty {
		return model.Annotation{}, queue.ErrEmptyQueue
	}
	if c.state != StateReady {
		return model.Annotation{}, fmt.Errorf("session is %s, not ready", c.state)
	}
	if draft.Empty() {
		// Rejected locally; the gateway is never contacted.
		return model.Annotation{}, fmt.Errorf("%w: annotation needs notes or a corrected label", common.ErrValidation)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	annotation, err := c.annotations.Append(callCtx, draft)
	if err != nil {
		return model.Annotation{}, classify(err)
	}
	return annotation, nil
}

// Resolve records the reviewer's decision for the current item. When the
// draft carries content it is submitted first; if that fails the status
// change is never attempted and the item is left untouched.
//
// On a confirmed Reviewed the item leaves the active queue and the cursor
// lands on whichever item the portal's ordering placed next. On a confirmed
// PendingReview the item stays with its status updated and the session
// advances to keep the triage moving; at the end of the queue the cursor
// stays put.
func (c *Controller) Resolve(ctx context.Context, target model.ReviewStatus, draft model.AnnotationDraft) error {
	if !c.submitting.CompareAndSwap(false, true) {
		return common.ErrBusy
	}
	defer c.submitting.Store(false)

	if c.state == StateEmpty {
		return queue.ErrEmptyQueue
	}
	if c.state != StateReady {
		return fmt.Errorf("session is %s, not ready", c.state)
	}
	if !target.Valid() {
		return fmt.Errorf("%w: unknown review status %q", common.ErrValidation, target)
	}

	current, ok := c.queue.Current()
	if !ok {
		return queue.ErrEmptyQueue
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if !draft.Empty() {
		if _, err := c.annotations.Append(callCtx, draft); err != nil {
			// Fail fast: no partial commit, the status change is not sent.
			return classify(err)
		}
	}

	if err := c.gateway.SetStatus(callCtx, current.ID, target); err != nil {
		return classify(fmt.Errorf("failed to update status for item %s: %w", current.ID, err))
	}

	if target == model.StatusReviewed {
		if err := c.queue.RemoveCurrent(); err != nil {
			return err
		}
		if c.queue.Len() == 0 {
			c.annotations.Clear()
			c.state = StateEmpty
			return nil
		}
		// The resolution is committed at the portal; a failed reload of the
		// next item's annotations must not read as a retryable failure. The
		// store clears itself on a failed load.
		_ = c.loadCurrentAnnotations(ctx)
		return nil
	}

	if err := c.queue.UpdateCurrentStatus(target); err != nil {
		return err
	}
	if err := c.queue.Advance(); errors.Is(err, queue.ErrAtEnd) {
		// Last item stays under the cursor; nothing new to load.
		return nil
	}
	_ = c.loadCurrentAnnotations(ctx)
	return nil
}

func (c *Controller) fetchQueue(ctx context.Context) ([]model.FlaggedItem, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	items, err := c.gateway.FetchQueue(callCtx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to fetch flagged queue: %w", err))
	}
	return items, nil
}

func (c *Controller) loadCurrentAnnotations(ctx context.Context) error {
	current, ok := c.queue.Current()
	if !ok {
		c.annotations.Clear()
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.annotations.Load(callCtx, current.ID); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps context expiry onto the network sentinel so timeouts read the
// same as any other transient gateway failure. Errors already carrying a
// sentinel pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrNetwork) ||
		errors.Is(err, common.ErrAccessDenied) ||
		errors.Is(err, common.ErrValidation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	return err
}
