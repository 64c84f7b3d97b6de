// Package gateway implements the sync gateway over the portal's REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hsdd/triage/internal/common"
	"github.com/hsdd/triage/internal/model"
)

// Client talks to the portal's doctor API. It holds the authenticated session
// token as an opaque credential; nothing else in the engine ever sees it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Portal API response types. The backend serializes numeric ids and zone-less
// LocalDateTime timestamps; both are normalized at this boundary.
type flaggedReport struct {
	ID                 int64   `json:"id"`
	PatientName        string  `json:"patientName"`
	PatientID          string  `json:"patientId"`
	PredictedDisease   string  `json:"predictedDisease"`
	Confidence         float64 `json:"confidence"`
	SubmittedOn        string  `json:"submittedOn"`
	Status             string  `json:"status"`
	SymptomDescription string  `json:"symptomDescription"`
}

type annotationRecord struct {
	ID             int64   `json:"id"`
	PredictionID   int64   `json:"predictionId"`
	DoctorUsername string  `json:"doctorUsername"`
	Notes          string  `json:"notes"`
	CorrectedLabel *string `json:"correctedLabel"`
	CreatedAt      string  `json:"createdAt"`
}

type annotationRequest struct {
	PredictionID   int64   `json:"predictionId"`
	Notes          string  `json:"notes"`
	CorrectedLabel *string `json:"correctedLabel"`
}

// NewClient creates a portal gateway client.
func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: portal URL is required", common.ErrValidation)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: session token is required", common.ErrValidation)
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// FetchQueue retrieves the flagged predictions in the portal's triage order.
func (c *Client) FetchQueue(ctx context.Context) ([]model.FlaggedItem, error) {
	body, err := c.get(ctx, "/api/doctor/flagged")
	if err != nil {
		return nil, err
	}

	var reports []flaggedReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, fmt.Errorf("%w: failed to decode flagged queue: %v", common.ErrNetwork, err)
	}

	items := make([]model.FlaggedItem, len(reports))
	for i, r := range reports {
		items[i] = model.FlaggedItem{
			ID:             strconv.FormatInt(r.ID, 10),
			SubjectRef:     r.PatientID,
			PredictedLabel: r.PredictedDisease,
			Confidence:     r.Confidence,
			SubmittedAt:    parsePortalTime(r.SubmittedOn),
			SymptomSummary: r.SymptomDescription,
			Status:         reviewStatus(r.Status),
		}
	}
	return items, nil
}

// FetchAnnotations retrieves the annotations recorded for one prediction.
func (c *Client) FetchAnnotations(ctx context.Context, itemID string) ([]model.Annotation, error) {
	if _, err := strconv.ParseInt(itemID, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: invalid item id %q", common.ErrValidation, itemID)
	}

	body, err := c.get(ctx, fmt.Sprintf("/api/doctor/predictions/%s/annotations", itemID))
	if err != nil {
		return nil, err
	}

	var records []annotationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode annotations: %v", common.ErrNetwork, err)
	}

	annotations := make([]model.Annotation, len(records))
	for i, r := range records {
		annotations[i] = toAnnotation(r)
	}
	return annotations, nil
}

// SubmitAnnotation creates an annotation for itemID and returns the record
// with the portal-assigned id.
func (c *Client) SubmitAnnotation(ctx context.Context, itemID string, draft model.AnnotationDraft) (model.Annotation, error) {
	predictionID, err := strconv.ParseInt(itemID, 10, 64)
	if err != nil {
		return model.Annotation{}, fmt.Errorf("%w: invalid item id %q", common.ErrValidation, itemID)
	}

	payload := annotationRequest{
		PredictionID: predictionID,
		Notes:        strings.TrimSpace(draft.Notes),
	}
	if label := strings.TrimSpace(draft.CorrectedLabel); label != "" {
		payload.CorrectedLabel = &label
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return model.Annotation{}, fmt.Errorf("failed to encode annotation: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/doctor/annotations", bytes.NewReader(encoded))
	if err != nil {
		return model.Annotation{}, err
	}

	var record annotationRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return model.Annotation{}, fmt.Errorf("%w: failed to decode annotation: %v", common.ErrNetwork, err)
	}
	return toAnnotation(record), nil
}

// SetStatus records the review decision for itemID on the portal.
func (c *Client) SetStatus(ctx context.Context, itemID string, status model.ReviewStatus) error {
	if _, err := strconv.ParseInt(itemID, 10, 64); err != nil {
		return fmt.Errorf("%w: invalid item id %q", common.ErrValidation, itemID)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown review status %q", common.ErrValidation, status)
	}

	action := "pending"
	if status == model.StatusReviewed {
		action = "review"
	}

	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/doctor/low-confidence/%s/%s", itemID, action), nil)
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", common.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: portal returned %d for %s", common.ErrAccessDenied, resp.StatusCode, path)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: portal rejected the request: %s", common.ErrValidation, strings.TrimSpace(string(payload)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: portal returned %d for %s", common.ErrNetwork, resp.StatusCode, path)
	}

	return payload, nil
}

func toAnnotation(r annotationRecord) model.Annotation {
	annotation := model.Annotation{
		ID:        strconv.FormatInt(r.ID, 10),
		ItemID:    strconv.FormatInt(r.PredictionID, 10),
		AuthorRef: r.DoctorUsername,
		Notes:     r.Notes,
		CreatedAt: parsePortalTime(r.CreatedAt),
	}
	if r.CorrectedLabel != nil {
		annotation.CorrectedLabel = *r.CorrectedLabel
	}
	return annotation
}

// parsePortalTime accepts RFC3339 and the backend's zone-less LocalDateTime
// form, normalizing to UTC. Unparseable values become the zero time; the
// timestamp is display data and never drives workflow decisions.
func parsePortalTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func reviewStatus(value string) model.ReviewStatus {
	if model.ReviewStatus(value).Valid() {
		return model.ReviewStatus(value)
	}
	return model.StatusPendingReview
}
