// Package model defines the core domain models used throughout the application.
package model

import "time"

// ReviewStatus indicates where a flagged prediction sits in the review workflow.
type ReviewStatus string

// Review status constants. Values match the portal's wire representation.
const (
	StatusPendingReview ReviewStatus = "Pending Review"
	StatusReviewed      ReviewStatus = "Reviewed"
)

// Valid reports whether s is one of the known review statuses.
func (s ReviewStatus) Valid() bool {
	return s == StatusPendingReview || s == StatusReviewed
}

// FlaggedItem is a low-confidence AI prediction awaiting clinical review.
type FlaggedItem struct {
	SubmittedAt    time.Time
	ID             string
	SubjectRef     string // patient/case reference, opaque to the engine
	PredictedLabel string
	SymptomSummary string
	Status         ReviewStatus
	Confidence     float64 // in [0,1]
}
