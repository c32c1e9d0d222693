package view

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclinic/patient-portal/internal/appointments"
	"github.com/openclinic/patient-portal/internal/notify"
)

type stubResolver struct {
	id  string
	err error
}

func (s *stubResolver) PatientID(ctx context.Context) (string, error) {
	return s.id, s.err
}

type stubService struct {
	mu          sync.Mutex
	listCalls   int32
	listBody    any
	listErr     error
	listStarted chan struct{}
	listRelease chan struct{}

	cancelErr     error
	cancelRelease chan struct{}
	cancelled     []string
	statusUpdates map[string]string
}

func (s *stubService) ListByPatient(ctx context.Context, patientID string) (any, error) {
	atomic.AddInt32(&s.listCalls, 1)
	if s.listStarted != nil {
		s.listStarted <- struct{}{}
	}
	if s.listRelease != nil {
		<-s.listRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBody, s.listErr
}

func (s *stubService) Cancel(ctx context.Context, appointmentID string) error {
	if s.cancelRelease != nil {
		<-s.cancelRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, appointmentID)
	return s.cancelErr
}

func (s *stubService) UpdateStatus(ctx context.Context, appointmentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusUpdates == nil {
		s.statusUpdates = make(map[string]string)
	}
	s.statusUpdates[appointmentID] = status
	return nil
}

func (s *stubService) setListResult(body any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listBody = body
	s.listErr = err
}

func (s *stubService) calls() int32 {
	return atomic.LoadInt32(&s.listCalls)
}

func twoRecordBody() any {
	return []any{
		map[string]any{"id": float64(1), "appointment_date": "2026-01-01", "status": "PENDING"},
		map[string]any{"id": float64(2), "appointment_date": "2024-01-01", "status": "CONFIRMED"},
	}
}

func newTestEngine(service *stubService, sink *notify.Stub) *Engine {
	if sink == nil {
		sink = &notify.Stub{}
	}
	engine := NewEngine(&stubResolver{id: "42"}, service, sink, nil, nil)
	// Pin the clock between the fixture dates (2024-01-01 past, 2026-01-01
	// upcoming) so the tab split does not depend on the wall clock.
	engine.now = func() time.Time { return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC) }
	return engine
}

func alwaysConfirm(string) bool { return true }

func TestLoadReplacesCanonicalSet(t *testing.T) {
	service := &stubService{}
	service.setListResult(twoRecordBody(), nil)
	engine := newTestEngine(service, nil)

	require.NoError(t, engine.Load(context.Background(), true))

	snap := engine.Snapshot(appointments.Projection{Tab: appointments.TabPast, Status: appointments.StatusAll, Sort: appointments.SortByDate})
	require.Len(t, snap.Appointments, 1)
	assert.Equal(t, "2", snap.Appointments[0].ID)
	assert.False(t, snap.Loading)
	assert.False(t, snap.Refreshing)
	assert.Empty(t, snap.Error)
}

func TestLoadSingleFlight(t *testing.T) {
	service := &stubService{
		listStarted: make(chan struct{}, 1),
		listRelease: make(chan struct{}),
	}
	service.setListResult([]any{}, nil)
	engine := newTestEngine(service, nil)

	done := make(chan error, 1)
	go func() { done <- engine.Load(context.Background(), false) }()
	<-service.listStarted

	// A load invoked while one is in flight must not reach the service.
	err := engine.Load(context.Background(), false)
	assert.ErrorIs(t, err, ErrRefreshInFlight)

	close(service.listRelease)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, service.calls(), "exactly one outbound service call")
}

func TestLoadKeepsStaleSetOnFetchFailure(t *testing.T) {
	service := &stubService{}
	service.setListResult(twoRecordBody(), nil)
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	require.NoError(t, engine.Load(context.Background(), true))

	service.setListResult(nil, &appointments.ServiceError{StatusCode: 503, Message: "maintenance window"})
	err := engine.Load(context.Background(), false)
	require.Error(t, err)

	snap := engine.Snapshot(appointments.Projection{Tab: appointments.TabPast, Status: appointments.StatusAll, Sort: appointments.SortByDate})
	assert.Len(t, snap.Appointments, 1, "previously displayed set must survive the failure")
	assert.Equal(t, "Failed to load appointments", snap.Error)
	require.Len(t, sink.Errors, 1)
	assert.Contains(t, sink.Errors[0], "maintenance window")
}

func TestLoadIdentityFailureKeepsSet(t *testing.T) {
	service := &stubService{}
	service.setListResult(twoRecordBody(), nil)
	engine := newTestEngine(service, nil)
	require.NoError(t, engine.Load(context.Background(), true))

	engine.resolver = &stubResolver{err: errors.New("no session")}
	err := engine.Load(context.Background(), false)
	require.Error(t, err)

	snap := engine.Snapshot(appointments.DefaultProjection())
	assert.Equal(t, "Could not determine patient ID", snap.Error)
	assert.EqualValues(t, 1, service.calls(), "no fetch without an identity")
	assert.Len(t, engine.Snapshot(appointments.Projection{Tab: appointments.TabPast, Status: appointments.StatusAll}).Appointments, 1)
}

func TestLoadClearsErrorOnRecovery(t *testing.T) {
	service := &stubService{}
	service.setListResult(nil, errors.New("down"))
	engine := newTestEngine(service, nil)

	require.Error(t, engine.Load(context.Background(), true))
	require.NotEmpty(t, engine.Snapshot(appointments.DefaultProjection()).Error)

	service.setListResult(twoRecordBody(), nil)
	require.NoError(t, engine.Load(context.Background(), false))
	assert.Empty(t, engine.Snapshot(appointments.DefaultProjection()).Error)
}

func TestCancelHappyPath(t *testing.T) {
	service := &stubService{}
	service.setListResult(twoRecordBody(), nil)
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	require.NoError(t, engine.Cancel(context.Background(), "2", alwaysConfirm))

	assert.Equal(t, []string{"2"}, service.cancelled)
	assert.Equal(t, []string{"Appointment cancelled successfully"}, sink.Successes)
	assert.EqualValues(t, 1, service.calls(), "success triggers a reconciliation fetch")

	snap := engine.Snapshot(appointments.DefaultProjection())
	assert.Empty(t, snap.CancelingIDs, "in-flight marker cleared")
}

func TestCancelMissingID(t *testing.T) {
	service := &stubService{}
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	confirmCalled := false
	err := engine.Cancel(context.Background(), "", func(string) bool {
		confirmCalled = true
		return true
	})

	assert.ErrorIs(t, err, ErrMissingID)
	assert.False(t, confirmCalled, "no confirmation prompt for a missing id")
	assert.Empty(t, service.cancelled)
	assert.EqualValues(t, 0, service.calls())
	assert.Empty(t, sink.Errors)
	assert.Empty(t, sink.Successes)
}

func TestCancelDeclined(t *testing.T) {
	service := &stubService{}
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	err := engine.Cancel(context.Background(), "2", func(string) bool { return false })

	assert.ErrorIs(t, err, ErrConfirmationDeclined)
	assert.Empty(t, service.cancelled, "declined gate must not reach the service")
	assert.Empty(t, sink.Successes)
	assert.Empty(t, sink.Errors)
}

func TestCancelSingleFlightPerID(t *testing.T) {
	service := &stubService{cancelRelease: make(chan struct{})}
	service.setListResult([]any{}, nil)
	engine := newTestEngine(service, nil)

	done := make(chan error, 1)
	go func() { done <- engine.Cancel(context.Background(), "7", alwaysConfirm) }()

	require.Eventually(t, func() bool {
		return len(engine.Snapshot(appointments.DefaultProjection()).CancelingIDs) == 1
	}, time.Second, 5*time.Millisecond)

	// Same id is rejected while in flight.
	err := engine.Cancel(context.Background(), "7", alwaysConfirm)
	assert.ErrorIs(t, err, ErrCancelInFlight)

	// A different id is permitted concurrently.
	other := make(chan error, 1)
	go func() { other <- engine.Cancel(context.Background(), "8", alwaysConfirm) }()

	require.Eventually(t, func() bool {
		return len(engine.Snapshot(appointments.DefaultProjection()).CancelingIDs) == 2
	}, time.Second, 5*time.Millisecond)

	close(service.cancelRelease)
	require.NoError(t, <-done)
	require.NoError(t, <-other)
}

func TestCancelFailureUsesServiceMessage(t *testing.T) {
	service := &stubService{cancelErr: &appointments.ServiceError{StatusCode: 409, Message: "appointment already completed"}}
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	err := engine.Cancel(context.Background(), "2", alwaysConfirm)
	require.Error(t, err)

	require.Len(t, sink.Errors, 1)
	assert.Equal(t, "appointment already completed", sink.Errors[0])
	assert.Empty(t, engine.Snapshot(appointments.DefaultProjection()).CancelingIDs, "marker cleared on failure too")
	assert.EqualValues(t, 0, service.calls(), "no refresh after a failed mutation")
}

func TestCancelFailureGenericMessage(t *testing.T) {
	service := &stubService{cancelErr: errors.New("socket hangup")}
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	require.Error(t, engine.Cancel(context.Background(), "2", alwaysConfirm))
	require.Len(t, sink.Errors, 1)
	assert.Equal(t, "Failed to cancel appointment", sink.Errors[0])
}

func TestUpdateStatusDrivesService(t *testing.T) {
	service := &stubService{}
	service.setListResult([]any{}, nil)
	sink := &notify.Stub{}
	engine := newTestEngine(service, sink)

	require.NoError(t, engine.UpdateStatus(context.Background(), "9", appointments.StatusConfirmed, alwaysConfirm))

	assert.Equal(t, appointments.StatusConfirmed, service.statusUpdates["9"])
	assert.Equal(t, []string{"Appointment updated successfully"}, sink.Successes)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	service := &stubService{}
	service.setListResult(twoRecordBody(), nil)
	engine := newTestEngine(service, nil)

	ch := engine.Subscribe()
	defer engine.Unsubscribe(ch)

	require.NoError(t, engine.Load(context.Background(), true))

	select {
	case snap := <-ch:
		assert.NotNil(t, snap.Appointments)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot after a committed load")
	}
}

func TestSnapshotLoadingOnlyOnInitial(t *testing.T) {
	service := &stubService{
		listStarted: make(chan struct{}, 1),
		listRelease: make(chan struct{}),
	}
	service.setListResult([]any{}, nil)
	engine := newTestEngine(service, nil)

	done := make(chan error, 1)
	go func() { done <- engine.Load(context.Background(), false) }()
	<-service.listStarted

	snap := engine.Snapshot(appointments.DefaultProjection())
	assert.True(t, snap.Refreshing)
	assert.False(t, snap.Loading, "background refresh must not blank the list")

	close(service.listRelease)
	require.NoError(t, <-done)
}
