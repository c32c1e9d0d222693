package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openclinic/patient-portal/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Service is the upstream appointment API consumed by the portal.
type Service interface {
	// ListByPatient returns the decoded response body without assuming its
	// shape; see UnwrapRecords.
	ListByPatient(ctx context.Context, patientID string) (any, error)
	// Cancel marks an appointment cancelled.
	Cancel(ctx context.Context, appointmentID string) error
	// UpdateStatus moves an appointment to the given status.
	UpdateStatus(ctx context.Context, appointmentID, status string) error
}

// ServiceError is a rejection from the appointment service. Message carries
// the human-readable detail from the response body when one was present.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("appointment service: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("appointment service: request failed (status %d)", e.StatusCode)
}

// HTTPClient talks to the hospital backend's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPClient creates a client for the appointment service at baseURL.
// Requests are bounded by timeout; zero selects the default.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *logging.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ListByPatient fetches the patient's appointments. The body is returned
// decoded but unshaped: historical API versions disagree on the envelope.
func (c *HTTPClient) ListByPatient(ctx context.Context, patientID string) (any, error) {
	endpoint := fmt.Sprintf("%s/api/appointments/patient/%s", c.baseURL, url.PathEscape(patientID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("appointments: build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by patient: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.serviceError(resp)
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("appointments: decode list response: %w", err)
	}
	return body, nil
}

// Cancel transitions the appointment to CANCELLED. The backend models
// cancellation as a status update.
func (c *HTTPClient) Cancel(ctx context.Context, appointmentID string) error {
	return c.UpdateStatus(ctx, appointmentID, StatusCancelled)
}

// UpdateStatus drives PUT /api/appointments/{id}/status.
func (c *HTTPClient) UpdateStatus(ctx context.Context, appointmentID, status string) error {
	endpoint := fmt.Sprintf("%s/api/appointments/%s/status", c.baseURL, url.PathEscape(appointmentID))

	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("appointments: encode status payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("appointments: build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.serviceError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// serviceError reads the failure body and extracts the optional message
// field ("message" or "error").
func (c *HTTPClient) serviceError(resp *http.Response) error {
	svcErr := &ServiceError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return svcErr
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			svcErr.Message = payload.Message
		} else if payload.Error != "" {
			svcErr.Message = payload.Error
		}
	}
	return svcErr
}

var _ Service = (*HTTPClient)(nil)
