// Package view owns the appointment view model: the canonical set, its
// transient flags, the refresh lifecycle and the cancel mutation. The
// projector only ever reads from here.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openclinic/patient-portal/internal/appointments"
	"github.com/openclinic/patient-portal/internal/notify"
	"github.com/openclinic/patient-portal/internal/observability/metrics"
	"github.com/openclinic/patient-portal/pkg/logging"
)

var viewTracer = otel.Tracer("portal.internal.view")

var (
	// ErrRefreshInFlight is returned when a load is requested while another
	// one is still running. The caller relies on the scheduler's next pass.
	ErrRefreshInFlight = errors.New("view: refresh already in flight")
	// ErrCancelInFlight guards the per-appointment single-flight rule.
	ErrCancelInFlight = errors.New("view: cancellation already in flight for this appointment")
	// ErrMissingID marks a cancel request without an actionable id.
	ErrMissingID = errors.New("view: appointment id required")
	// ErrConfirmationDeclined means the user answered no at the gate.
	ErrConfirmationDeclined = errors.New("view: cancellation not confirmed")
)

const (
	msgLoadFailed   = "Failed to load appointments"
	msgCancelled    = "Appointment cancelled successfully"
	msgCancelFailed = "Failed to cancel appointment"
	msgUpdated      = "Appointment updated successfully"
	msgUpdateFailed = "Failed to update appointment"
	msgNoPatientID  = "Could not determine patient ID"
)

// IdentityResolver yields the patient whose appointments are shown.
type IdentityResolver interface {
	PatientID(ctx context.Context) (string, error)
}

// ConfirmFunc is the synchronous yes/no gate consulted before a mutation is
// sent upstream.
type ConfirmFunc func(appointmentID string) bool

// Snapshot is the read-only projection handed to the rendering boundary.
type Snapshot struct {
	Appointments []appointments.Appointment `json:"appointments"`
	Projection   appointments.Projection    `json:"projection"`
	Loading      bool                       `json:"loading"`
	Refreshing   bool                       `json:"refreshing"`
	Error        string                     `json:"error,omitempty"`
	CancelingIDs []string                   `json:"cancelingIds,omitempty"`
	GeneratedAt  time.Time                  `json:"generatedAt"`
}

// Engine reconciles the upstream appointment list into a stable view model.
// All state is owned here; concurrent loads collapse to one service call and
// cancellations are single-flight per appointment id.
type Engine struct {
	resolver IdentityResolver
	service  appointments.Service
	notifier notify.Notifier
	metrics  *metrics.ViewMetrics
	logger   *logging.Logger

	mu         sync.Mutex
	appts      []appointments.Appointment
	loading    bool
	refreshing bool
	lastError  string
	canceling  map[string]struct{}

	subsMu sync.Mutex
	subs   map[chan Snapshot]struct{}

	now func() time.Time
}

// NewEngine constructs the view engine.
func NewEngine(resolver IdentityResolver, service appointments.Service, notifier notify.Notifier, m *metrics.ViewMetrics, logger *logging.Logger) *Engine {
	if resolver == nil {
		panic("view: identity resolver required")
	}
	if service == nil {
		panic("view: appointment service required")
	}
	if notifier == nil {
		notifier = &notify.Stub{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		resolver:  resolver,
		service:   service,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		canceling: make(map[string]struct{}),
		subs:      make(map[chan Snapshot]struct{}),
		now:       time.Now,
	}
}

// Load fetches, normalizes and swaps in the canonical set. Initial loads
// raise the loading flag so the first render can show a spinner; background
// and manual refreshes leave the current list visible. A load that fails
// keeps the previous set (stale beats blank).
func (e *Engine) Load(ctx context.Context, initial bool) error {
	trigger := "manual"
	if initial {
		trigger = "initial"
	}
	return e.load(ctx, initial, trigger)
}

func (e *Engine) load(ctx context.Context, initial bool, trigger string) error {
	e.mu.Lock()
	if e.refreshing {
		e.mu.Unlock()
		return ErrRefreshInFlight
	}
	e.refreshing = true
	if initial {
		e.loading = true
	}
	e.mu.Unlock()

	ctx, span := viewTracer.Start(ctx, "view.load")
	defer span.End()
	span.SetAttributes(attribute.String("portal.refresh_trigger", trigger))

	started := e.now()
	err := e.reconcile(ctx)
	elapsed := e.now().Sub(started).Seconds()

	e.mu.Lock()
	e.refreshing = false
	e.loading = false
	e.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveRefresh(trigger, "error", elapsed)
		return err
	}
	e.metrics.ObserveRefresh(trigger, "ok", elapsed)
	e.publish()
	return nil
}

func (e *Engine) reconcile(ctx context.Context) error {
	patientID, err := e.resolver.PatientID(ctx)
	if err != nil {
		e.setError(msgNoPatientID)
		e.logger.Error("view: identity resolution failed", "error", err)
		e.notifier.Error(msgLoadFailed + ". " + msgNoPatientID)
		return fmt.Errorf("view: resolve identity: %w", err)
	}

	body, err := e.service.ListByPatient(ctx, patientID)
	if err != nil {
		e.setError(msgLoadFailed)
		e.logger.Error("view: fetch failed", "error", err, "patient_id", patientID)
		e.notifier.Error(loadFailureMessage(err))
		return fmt.Errorf("view: fetch appointments: %w", err)
	}

	appts := appointments.NormalizeAll(appointments.UnwrapRecords(body))

	e.mu.Lock()
	e.appts = appts
	e.lastError = ""
	e.mu.Unlock()

	e.logger.Debug("view: canonical set replaced", "patient_id", patientID, "count", len(appts))
	return nil
}

// Cancel drives the cancel-appointment mutation. The confirmation gate runs
// before anything leaves the process; a declined gate is a silent no-op at
// the sink level. The in-flight marker for the id is cleared on every path.
func (e *Engine) Cancel(ctx context.Context, appointmentID string, confirm ConfirmFunc) error {
	return e.mutate(ctx, appointmentID, confirm, "view.cancel",
		func(ctx context.Context) error { return e.service.Cancel(ctx, appointmentID) },
		e.metrics.ObserveCancel, msgCancelled, msgCancelFailed)
}

// UpdateStatus moves an appointment to the given status under the same
// discipline as Cancel.
func (e *Engine) UpdateStatus(ctx context.Context, appointmentID, status string, confirm ConfirmFunc) error {
	return e.mutate(ctx, appointmentID, confirm, "view.update_status",
		func(ctx context.Context) error { return e.service.UpdateStatus(ctx, appointmentID, status) },
		nil, msgUpdated, msgUpdateFailed)
}

func (e *Engine) mutate(ctx context.Context, appointmentID string, confirm ConfirmFunc, spanName string, op func(context.Context) error, observe func(result string), successMsg, failureMsg string) error {
	if appointmentID == "" {
		return ErrMissingID
	}
	if confirm == nil || !confirm(appointmentID) {
		return ErrConfirmationDeclined
	}

	e.mu.Lock()
	if _, inFlight := e.canceling[appointmentID]; inFlight {
		e.mu.Unlock()
		return ErrCancelInFlight
	}
	e.canceling[appointmentID] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.canceling, appointmentID)
		e.mu.Unlock()
		e.publish()
	}()

	ctx, span := viewTracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("portal.appointment_id", appointmentID))

	if err := op(ctx); err != nil {
		span.RecordError(err)
		if observe != nil {
			observe("error")
		}
		e.logger.Error("view: mutation failed", "error", err, "appointment_id", appointmentID)
		e.notifier.Error(mutationFailureMessage(err, failureMsg))
		return err
	}

	if observe != nil {
		observe("ok")
	}
	e.notifier.Success(successMsg)

	// Reconcile so the list reflects the upstream truth. A refresh already
	// in flight will pick the change up on its own.
	if err := e.load(ctx, false, "mutation"); err != nil && !errors.Is(err, ErrRefreshInFlight) {
		e.logger.Warn("view: post-mutation refresh failed", "error", err)
	}
	return nil
}

// Snapshot projects the current state for rendering. It never re-enters the
// engine and the returned data is detached from internal state.
func (e *Engine) Snapshot(p appointments.Projection) Snapshot {
	e.mu.Lock()
	appts := make([]appointments.Appointment, len(e.appts))
	copy(appts, e.appts)
	snap := Snapshot{
		Projection: p,
		Loading:    e.loading,
		Refreshing: e.refreshing,
		Error:      e.lastError,
	}
	for id := range e.canceling {
		snap.CancelingIDs = append(snap.CancelingIDs, id)
	}
	e.mu.Unlock()

	now := e.now()
	snap.Appointments = appointments.Project(appts, p, now)
	snap.GeneratedAt = now
	return snap
}

// Subscribe registers a snapshot consumer. Each committed state change
// pushes a fresh default-projection snapshot; slow consumers miss updates
// rather than blocking the engine.
func (e *Engine) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 1)
	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a consumer channel.
func (e *Engine) Unsubscribe(ch chan Snapshot) {
	e.subsMu.Lock()
	if _, ok := e.subs[ch]; ok {
		delete(e.subs, ch)
		close(ch)
	}
	e.subsMu.Unlock()
}

func (e *Engine) publish() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if len(e.subs) == 0 {
		return
	}
	snap := e.Snapshot(appointments.DefaultProjection())
	for ch := range e.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (e *Engine) setError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

func loadFailureMessage(err error) string {
	var svcErr *appointments.ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return msgLoadFailed + ". " + svcErr.Message
	}
	return msgLoadFailed
}

func mutationFailureMessage(err error, fallback string) string {
	var svcErr *appointments.ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
