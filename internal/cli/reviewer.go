package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hsdd/triage/internal/common"
	"github.com/hsdd/triage/internal/journal"
	"github.com/hsdd/triage/internal/model"
	"github.com/hsdd/triage/internal/queue"
	"github.com/hsdd/triage/internal/session"
	"github.com/schollz/progressbar/v3"
)

// Recorder receives one entry per confirmed resolution. The review journal
// implements it; a nil Recorder disables local recording.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Reviewer drives one interactive review session over the terminal. It is the
// UI caller the engine expects: it blocks user interaction while a submission
// is in flight and decides what to do with boundary conditions and errors.
type Reviewer struct {
	startTime  time.Time
	controller *session.Controller
	recorder   Recorder
	reader     *bufio.Reader
	writer     io.Writer
	bar        *progressbar.ProgressBar
	sessionID  string
	reviewed   int
	kept       int
}

// NewReviewer creates a reviewer for one session. reader and writer default
// to stdin/stdout; recorder may be nil.
func NewReviewer(controller *session.Controller, recorder Recorder, sessionID string, reader io.Reader, writer io.Writer) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Reviewer{
		controller: controller,
		recorder:   recorder,
		sessionID:  sessionID,
		reader:     bufio.NewReader(reader),
		writer:     writer,
		startTime:  time.Now(),
	}
}

// Run loads the flagged queue and loops until it is exhausted or the
// reviewer quits.
func (r *Reviewer) Run(ctx context.Context) error {
	if err := r.controller.Load(ctx); err != nil {
		if errors.Is(err, common.ErrAccessDenied) {
			return common.NewUserError("your session is no longer valid, sign in to the portal again", err)
		}
		return common.NewUserError("could not load the flagged queue", err)
	}

	if r.controller.State() == session.StateEmpty {
		fmt.Fprintln(r.writer, FormatSuccess("No flagged predictions to review."))
		return nil
	}

	_, total := r.controller.Position()
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing flagged predictions...[reset]"),
	)

	for r.controller.State() == session.StateReady {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.showCurrent()

		choice, err := r.promptChoice(ctx, "Action", []string{"r", "p", "a", "n", "b", "q"})
		if err != nil {
			return err
		}

		switch choice {
		case "r":
			r.resolve(ctx, model.StatusReviewed)
		case "p":
			r.resolve(ctx, model.StatusPendingReview)
		case "a":
			r.annotateOnly(ctx)
		case "n":
			if navErr := r.controller.NavigateNext(ctx); navErr != nil {
				r.reportNavigation(navErr, "Already at the last flagged prediction.")
			}
		case "b":
			if navErr := r.controller.NavigatePrev(ctx); navErr != nil {
				r.reportNavigation(navErr, "Already at the first flagged prediction.")
			}
		case "q":
			r.showSummary()
			return nil
		}
	}

	fmt.Fprintln(r.writer, FormatSuccess("All flagged predictions have been reviewed."))
	r.showSummary()
	return nil
}

func (r *Reviewer) showCurrent() {
	item, ok := r.controller.Current()
	if !ok {
		return
	}
	index, total := r.controller.Position()

	confidence := fmt.Sprintf("%d%%", int(item.Confidence*100+0.5))
	if item.Confidence < 0.5 {
		confidence = ErrorStyle.Render(confidence)
	} else {
		confidence = WarningStyle.Render(confidence)
	}

	submitted := "—"
	if !item.SubmittedAt.IsZero() {
		submitted = item.SubmittedAt.Local().Format("2006-01-02 15:04")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Patient:    %s\n", item.SubjectRef)
	fmt.Fprintf(&b, "Predicted:  %s\n", item.PredictedLabel)
	fmt.Fprintf(&b, "Confidence: %s\n", confidence)
	fmt.Fprintf(&b, "Submitted:  %s\n", submitted)
	fmt.Fprintf(&b, "Status:     %s\n", string(item.Status))
	fmt.Fprintf(&b, "Symptoms:   %s", item.SymptomSummary)

	title := fmt.Sprintf("Flagged Prediction %d of %d", index+1, total)
	fmt.Fprintln(r.writer, RenderBox(title, b.String()))

	annotations := r.controller.Annotations()
	if len(annotations) > 0 {
		fmt.Fprintln(r.writer, FormatTitle("Previous annotations"))
		for _, annotation := range annotations {
			line := fmt.Sprintf("  • %s: %s", annotation.AuthorRef, annotation.Notes)
			if annotation.CorrectedLabel != "" {
				line += SubtleStyle.Render(fmt.Sprintf(" (corrected to %s)", annotation.CorrectedLabel))
			}
			fmt.Fprintln(r.writer, line)
		}
	}

	fmt.Fprintln(r.writer, "  [R] Mark reviewed   [P] Keep pending   [A] Annotate only")
	fmt.Fprintln(r.writer, "  [N] Next            [B] Previous       [Q] Quit")
}

func (r *Reviewer) resolve(ctx context.Context, target model.ReviewStatus) {
	item, ok := r.controller.Current()
	if !ok {
		return
	}

	draft, err := r.promptDraft(ctx, false)
	if err != nil {
		fmt.Fprintln(r.writer, FormatError(err.Error()))
		return
	}

	if err := r.controller.Resolve(ctx, target, draft); err != nil {
		r.reportActionError(err)
		return
	}

	if target == model.StatusReviewed {
		r.reviewed++
		if r.bar != nil {
			_ = r.bar.Add(1)
		}
		fmt.Fprintln(r.writer, FormatSuccess("Marked reviewed and removed from the flagged queue."))
	} else {
		r.kept++
		fmt.Fprintln(r.writer, FormatInfo("Review saved. The prediction remains flagged."))
	}

	r.record(ctx, item, target, draft)
}

func (r *Reviewer) annotateOnly(ctx context.Context) {
	draft, err := r.promptDraft(ctx, true)
	if err != nil {
		fmt.Fprintln(r.writer, FormatError(err.Error()))
		return
	}

	if _, err := r.controller.SubmitAnnotationDraft(ctx, draft); err != nil {
		r.reportActionError(err)
		return
	}
	fmt.Fprintln(r.writer, FormatSuccess("Annotation saved."))
}

// promptDraft collects notes and an optional corrected label. When required
// is false a fully blank draft is allowed and means "no annotation".
func (r *Reviewer) promptDraft(ctx context.Context, required bool) (model.AnnotationDraft, error) {
	notes, err := r.promptLine(ctx, "Notes (blank to skip)")
	if err != nil {
		return model.AnnotationDraft{}, err
	}
	label, err := r.promptLine(ctx, "Corrected diagnosis (blank to keep prediction)")
	if err != nil {
		return model.AnnotationDraft{}, err
	}

	draft := model.AnnotationDraft{Notes: notes, CorrectedLabel: label}
	if required && draft.Empty() {
		return model.AnnotationDraft{}, fmt.Errorf("an annotation needs notes or a corrected diagnosis")
	}
	return draft, nil
}

func (r *Reviewer) record(ctx context.Context, item model.FlaggedItem, target model.ReviewStatus, draft model.AnnotationDraft) {
	if r.recorder == nil {
		return
	}

	entry := journal.Entry{
		SessionID:      r.sessionID,
		ItemID:         item.ID,
		SubjectRef:     item.SubjectRef,
		PredictedLabel: item.PredictedLabel,
		CorrectedLabel: strings.TrimSpace(draft.CorrectedLabel),
		Status:         target,
		ResolvedAt:     time.Now().UTC(),
	}
	if err := r.recorder.Record(ctx, entry); err != nil {
		// The portal already has the resolution; losing the local copy is
		// worth a warning, not a failed action.
		fmt.Fprintln(r.writer, FormatWarning(fmt.Sprintf("could not record to the local journal: %v", err)))
	}
}

func (r *Reviewer) reportNavigation(err error, boundaryMessage string) {
	switch {
	case errors.Is(err, queue.ErrAtEnd), errors.Is(err, queue.ErrAtStart):
		fmt.Fprintln(r.writer, FormatInfo(boundaryMessage))
	case errors.Is(err, queue.ErrEmptyQueue):
		fmt.Fprintln(r.writer, FormatInfo("The flagged queue is empty."))
	default:
		r.reportActionError(err)
	}
}

func (r *Reviewer) reportActionError(err error) {
	switch {
	case errors.Is(err, common.ErrBusy):
		fmt.Fprintln(r.writer, FormatWarning("Another action is still in flight, try again in a moment."))
	case errors.Is(err, common.ErrAccessDenied):
		fmt.Fprintln(r.writer, FormatError("Your session is no longer valid, sign in to the portal again."))
	case errors.Is(err, common.ErrValidation):
		fmt.Fprintln(r.writer, FormatWarning(err.Error()))
	case errors.Is(err, common.ErrNetwork):
		fmt.Fprintln(r.writer, FormatError(fmt.Sprintf("The portal could not be reached: %v. Nothing was changed, you can retry.", err)))
	default:
		fmt.Fprintln(r.writer, FormatError(err.Error()))
	}
}

func (r *Reviewer) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(r.writer, "%s", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "q", nil
			}
			return "", err
		}

		choice := strings.ToLower(strings.TrimSpace(input))
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again."))
	}
}

func (r *Reviewer) promptLine(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if _, err := fmt.Fprintf(r.writer, "%s", FormatPrompt(prompt)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	input, err := r.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (r *Reviewer) showSummary() {
	elapsed := time.Since(r.startTime).Round(time.Second)
	content := fmt.Sprintf("Marked reviewed: %d\nKept pending:    %d\nElapsed:         %s",
		r.reviewed, r.kept, elapsed)
	fmt.Fprintln(r.writer, RenderBox("Session Summary", content))
}
