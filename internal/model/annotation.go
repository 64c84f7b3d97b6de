package model

import (
	"strings"
	"time"
)

// Annotation is a clinician's note attached to exactly one FlaggedItem.
// Annotations are append-only: they are never edited or deleted once the
// portal has assigned them an ID.
type Annotation struct {
	CreatedAt      time.Time
	ID             string // assigned by the portal on creation
	ItemID         string
	AuthorRef      string
	Notes          string
	CorrectedLabel string // overrides PredictedLabel downstream when set
}

// AnnotationDraft is a not-yet-submitted annotation. The engine has no ID
// authority; drafts only become Annotations through the sync gateway.
type AnnotationDraft struct {
	Notes          string
	CorrectedLabel string
}

// Empty reports whether the draft carries no content at all.
func (d AnnotationDraft) Empty() bool {
	return strings.TrimSpace(d.Notes) == "" && strings.TrimSpace(d.CorrectedLabel) == ""
}
