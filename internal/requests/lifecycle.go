package requests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/observability"
)

// Draft is an in-progress pickup request. The location must already be
// resolved to coordinates; the form owns address resolution.
type Draft struct {
	UserID            string
	EWasteType        string
	ContactNumber     string
	PreferredDatetime string
	ImageName         string
	Image             []byte
	Location          *models.GeoPoint
	AddressText       string
}

// Controller drives the status transitions of a single pickup request:
//
//	(none) --create--> open --accept--> accepted
//	                     \----reject--> rejected
//
// cancelled is recognized but has no client-initiated transition.
// The controller caches the request under review; successful actions
// transition that copy and then ask the owner (via OnMutation) to
// re-fetch its store, which is the source of truth for lists.
type Controller struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger

	// OnMutation runs after every successful mutation so the owning
	// view can refresh its request list.
	OnMutation func()

	mu      sync.Mutex
	current *models.PickupRequest
}

func NewController(baseURL string, logger *slog.Logger) *Controller {
	return &Controller{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Review caches the given record as the request under action. Accept
// and Reject consult this copy to refuse transitions out of terminal
// states without a round trip.
func (c *Controller) Review(r models.PickupRequest) {
	c.mu.Lock()
	cp := r
	c.current = &cp
	c.mu.Unlock()
}

// Current returns the cached request under review.
func (c *Controller) Current() (models.PickupRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return models.PickupRequest{}, false
	}
	return *c.current, true
}

// CanAct reports whether accept/reject should be offered for the
// cached request. Advisory only; the backend rejects stale transitions
// authoritatively.
func (c *Controller) CanAct() bool {
	r, ok := c.Current()
	return ok && r.Actionable()
}

// validateDraft checks preconditions in form order (image, type,
// contact, datetime, location) and names the first missing field.
func validateDraft(d *Draft) *ValidationError {
	if len(d.Image) == 0 {
		return &ValidationError{Field: "image", Reason: "an image must be attached"}
	}
	if d.EWasteType == "" {
		return &ValidationError{Field: "e_waste_type", Reason: "must not be empty"}
	}
	if d.ContactNumber == "" {
		return &ValidationError{Field: "contact_number", Reason: "must not be empty"}
	}
	if d.PreferredDatetime == "" {
		return &ValidationError{Field: "preferred_datetime", Reason: "must be set"}
	}
	if d.Location == nil || !d.Location.Valid() {
		return &ValidationError{Field: "location", Reason: "a resolved pickup location is required"}
	}
	return nil
}

// Create validates the draft and submits it as multipart form data.
// Any precondition violation returns a ValidationError without a
// network call. On success the draft is cleared and OnMutation fires.
func (c *Controller) Create(ctx context.Context, d *Draft) error {
	if verr := validateDraft(d); verr != nil {
		return verr
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"user_id":            d.UserID,
		"e_waste_type":       d.EWasteType,
		"contact_number":     d.ContactNumber,
		"preferred_datetime": d.PreferredDatetime,
		"latitude":           strconv.FormatFloat(d.Location.Lat, 'f', -1, 64),
		"longitude":          strconv.FormatFloat(d.Location.Lng, 'f', -1, 64),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	name := d.ImageName
	if name == "" {
		name = "upload"
	}
	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(d.Image); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/user/pickup-requests", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &SubmissionError{Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SubmissionError{Status: resp.StatusCode, Message: string(msg)}
	}

	*d = Draft{}
	observability.RequestsCreated.Inc()
	c.notify()
	return nil
}

// Accept awards points and moves the request to accepted. points must
// be a positive integer; violations are local and make no network
// call. Non-open cached status is refused locally.
func (c *Controller) Accept(ctx context.Context, id, adminID string, points int) error {
	if points <= 0 {
		return &ValidationError{Field: "points_awarded", Reason: "must be a positive integer"}
	}
	if err := c.refuseIfNotOpen(id); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]int{"points_awarded": points})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/admin/pickup-requests/%s/accept?admin_id=%s",
		c.BaseURL, url.PathEscape(id), url.QueryEscape(adminID))
	if aerr := c.patch(ctx, "accept", u, bytes.NewReader(body), "application/json"); aerr != nil {
		observability.RequestActions.WithLabelValues("accept", "error").Inc()
		return aerr
	}

	c.transition(id, models.StatusAccepted, &points)
	observability.RequestActions.WithLabelValues("accept", "ok").Inc()
	c.notify()
	return nil
}

// Reject declines the request. The confirm callback is the
// irreversible-action safeguard: unless it returns true, nothing is
// dispatched.
func (c *Controller) Reject(ctx context.Context, id, adminID string, confirm func() bool) error {
	if confirm == nil || !confirm() {
		return ErrNotConfirmed
	}
	if err := c.refuseIfNotOpen(id); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/admin/pickup-requests/%s/reject?admin_id=%s",
		c.BaseURL, url.PathEscape(id), url.QueryEscape(adminID))
	if aerr := c.patch(ctx, "reject", u, nil, ""); aerr != nil {
		observability.RequestActions.WithLabelValues("reject", "error").Inc()
		return aerr
	}

	c.transition(id, models.StatusRejected, nil)
	observability.RequestActions.WithLabelValues("reject", "ok").Inc()
	c.notify()
	return nil
}

func (c *Controller) refuseIfNotOpen(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.ID == id && !c.current.Actionable() {
		return ErrNotActionable
	}
	return nil
}

func (c *Controller) patch(ctx context.Context, action, u string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &ActionError{Action: action, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ActionError{Action: action, Status: resp.StatusCode, Message: string(msg)}
	}
	return nil
}

func (c *Controller) transition(id string, status models.RequestStatus, points *int) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == id {
		c.current.Status = status
		c.current.PointsAwarded = points
	}
	c.mu.Unlock()
}

func (c *Controller) notify() {
	if c.OnMutation != nil {
		c.OnMutation()
	}
}
