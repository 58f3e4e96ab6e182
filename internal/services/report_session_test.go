package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dcr-backend/internal/drafts"
	"dcr-backend/internal/models"
	"dcr-backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory server of record with switchable failures.
type fakeRemote struct {
	mu          sync.Mutex
	reports     map[string]*models.ReportData
	submitted   map[string]bool
	loadErr     error
	saveErr     error
	submitErr   error
	loadCalls   int
	saveCalls   int
	submitCalls int
	saveEntered chan struct{}
	saveRelease chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		reports:   make(map[string]*models.ReportData),
		submitted: make(map[string]bool),
	}
}

func remoteKey(project, dateKey string) string { return project + "|" + dateKey }

func (f *fakeRemote) Load(ctx context.Context, project, dateKey string) (*models.ReportData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	data, ok := f.reports[remoteKey(project, dateKey)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return data.Clone(), nil
}

func (f *fakeRemote) Save(ctx context.Context, data *models.ReportData) error {
	f.mu.Lock()
	f.saveCalls++
	entered, release := f.saveEntered, f.saveRelease
	err := f.saveErr
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[remoteKey(data.ProjectName, data.ReportDate)] = data.Clone()
	return nil
}

func (f *fakeRemote) Submit(ctx context.Context, project, dateKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted[remoteKey(project, dateKey)] = true
	return nil
}

// recordingNotifier captures every notification the session emits.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Notify(project, title, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, title+": "+reason)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// recordingExporter captures post-submission dispatches.
type recordingExporter struct {
	mu        sync.Mutex
	snapshots []*models.ReportData
}

func (e *recordingExporter) Dispatch(ctx context.Context, data *models.ReportData, reportDate time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots = append(e.snapshots, data.Clone())
}

// failingStore rejects every write, to exercise save failure paths.
type failingStore struct{}

func (failingStore) Save(ctx context.Context, project, dateKey string, data *models.ReportData) error {
	return errors.New("store offline")
}

func (failingStore) Load(ctx context.Context, project, dateKey string) (*models.ReportData, bool) {
	return nil, false
}

func (failingStore) Remove(ctx context.Context, project, dateKey string) error {
	return errors.New("store offline")
}

func newTestSession(t *testing.T) (*ReportSession, *drafts.MemoryStore, *fakeRemote, *recordingNotifier, *recordingExporter) {
	t.Helper()
	store := drafts.NewMemoryStore()
	remote := newFakeRemote()
	notifier := &recordingNotifier{}
	exporter := &recordingExporter{}
	session := NewReportSession("Riverside Tower", store, remote, exporter, notifier)
	t.Cleanup(session.Close)
	return session, store, remote, notifier, exporter
}

func activityReq(text string) *models.UpdateFieldsRequest {
	return &models.UpdateFieldsRequest{ActivityToday: &text}
}

func TestFirstSelectionLoadsRemote(t *testing.T) {
	session, _, remote, _, _ := newTestSession(t)
	ctx := context.Background()

	remote.reports[remoteKey("Riverside Tower", "2024-01-10")] = &models.ReportData{
		ProjectName:   "Riverside Tower",
		ReportDate:    "2024-01-10",
		ActivityToday: "Rebar inspection",
	}

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))

	snap := session.Snapshot()
	assert.Equal(t, "Rebar inspection", snap.ActivityToday)
	assert.Equal(t, "2024-01-10", snap.ReportDate)
	assert.Equal(t, 1, remote.loadCalls)
}

func TestFirstSelectionFallsBackToDraftOnRemoteError(t *testing.T) {
	session, store, remote, notifier, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "Riverside Tower", "2024-01-10", &models.ReportData{
		ProjectName:   "Riverside Tower",
		ReportDate:    "2024-01-10",
		ActivityToday: "From local draft",
	}))
	remote.loadErr = errors.New("network down")

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))

	assert.Equal(t, "From local draft", session.Snapshot().ActivityToday)
	// Load failures are silent; the fallback already covered them
	assert.Equal(t, 0, notifier.count())
}

func TestFirstSelectionEmptyDefaultsWhenNothingStored(t *testing.T) {
	session, _, _, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))

	snap := session.Snapshot()
	assert.Equal(t, "Riverside Tower", snap.ProjectName)
	assert.Equal(t, "2024-01-10", snap.ReportDate)
	assert.Empty(t, snap.ActivityToday)
	assert.Empty(t, snap.WorkingTeam)
}

func TestInitialLoadRunsAtMostOnce(t *testing.T) {
	session, _, remote, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-11"))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-12"))

	assert.Equal(t, 1, remote.loadCalls)
}

func TestSameDayReselectIsNoOp(t *testing.T) {
	session, store, _, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Half-typed act")))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))

	// No draft write, no carry-forward, edits untouched
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, "Half-typed act", session.Snapshot().ActivityToday)
}

func TestDateSwitchPersistsOutgoingAndCarriesForward(t *testing.T) {
	session, store, remote, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	rows := []models.ResourceRow{{ID: "pm", Description: "Project Manager", Prev: 1, Today: 2, Accumulated: 3}}
	require.NoError(t, session.UpdateFields(&models.UpdateFieldsRequest{
		ActivityToday:  strPtr("Concrete pour"),
		ManagementTeam: &rows,
	}))

	require.NoError(t, session.SetReportDate(ctx, "2024-01-11"))

	// Outgoing day saved as a draft
	draft, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	require.True(t, ok)
	assert.Equal(t, "Concrete pour", draft.ActivityToday)
	assert.Equal(t, "2024-01-10", draft.ReportDate)

	// Working copy is the carry-forward of the outgoing day
	snap := session.Snapshot()
	assert.Equal(t, "2024-01-11", snap.ReportDate)
	assert.Empty(t, snap.ActivityToday)
	require.Len(t, snap.ManagementTeam, 1)
	assert.Equal(t, 3.0, snap.ManagementTeam[0].Prev)
	assert.Equal(t, 0.0, snap.ManagementTeam[0].Today)
	assert.Equal(t, 3.0, snap.ManagementTeam[0].Accumulated)

	// Only the first selection ever consulted the remote store
	assert.Equal(t, 1, remote.loadCalls)
}

func TestDateSwitchIgnoresStaleTargetDraft(t *testing.T) {
	session, store, remote, _, _ := newTestSession(t)
	ctx := context.Background()

	// Both stores hold data for the target day; the switch must not read either
	require.NoError(t, store.Save(ctx, "Riverside Tower", "2024-01-11", &models.ReportData{
		ActivityToday: "Stale draft",
	}))
	remote.reports[remoteKey("Riverside Tower", "2024-01-11")] = &models.ReportData{
		ProjectName:   "Riverside Tower",
		ReportDate:    "2024-01-11",
		ActivityToday: "Remote version",
	}

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-11"))

	snap := session.Snapshot()
	assert.Empty(t, snap.ActivityToday)
	assert.Equal(t, 1, remote.loadCalls)
}

func TestDateSwitchRoundTripReappliesCarryForward(t *testing.T) {
	session, store, _, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	rows := []models.ResourceRow{{ID: "pm", Description: "Project Manager", Prev: 1, Today: 2, Accumulated: 3}}
	require.NoError(t, session.UpdateFields(&models.UpdateFieldsRequest{
		ActivityToday:  strPtr("Day one pour"),
		ManagementTeam: &rows,
	}))

	// Away and straight back: the return leg is a fresh carry-forward of the
	// intermediate day, not a restore of day one's values or its saved draft.
	require.NoError(t, session.SetReportDate(ctx, "2024-01-11"))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))

	snap := session.Snapshot()
	assert.Equal(t, "2024-01-10", snap.ReportDate)
	assert.Empty(t, snap.ActivityToday)
	require.Len(t, snap.ManagementTeam, 1)
	assert.Equal(t, 3.0, snap.ManagementTeam[0].Prev)
	assert.Equal(t, 0.0, snap.ManagementTeam[0].Today)
	assert.Equal(t, 3.0, snap.ManagementTeam[0].Accumulated)

	// Day one's draft from the first switch still holds the edits, proving the
	// working copy above did not come from the store.
	draft, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	require.True(t, ok)
	assert.Equal(t, "Day one pour", draft.ActivityToday)
	assert.Equal(t, 2.0, draft.ManagementTeam[0].Today)
}

func TestSaveDraftIsIdempotent(t *testing.T) {
	session, store, _, notifier, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	rows := []models.ResourceRow{{ID: "cp", Description: "Carpenter", Prev: 4, Today: 2, Accumulated: 6}}
	require.NoError(t, session.UpdateFields(&models.UpdateFieldsRequest{
		ActivityToday: strPtr("Formwork level 4"),
		WorkingTeam:   &rows,
	}))

	session.SaveDraft(ctx, false)
	first, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	require.True(t, ok)

	// Saving again with nothing changed leaves the stored entry identical.
	session.SaveDraft(ctx, false)
	second, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, notifier.count())
}

func TestDateSwitchSavesUnchangedSnapshot(t *testing.T) {
	session, store, _, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.SetReportDate(ctx, "2024-01-11"))

	_, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	assert.True(t, ok)
}

func TestSetReportDateRejectsInvalidDates(t *testing.T) {
	session, _, _, _, _ := newTestSession(t)
	ctx := context.Background()

	var verr *ValidationError
	err := session.SetReportDate(ctx, "10/01/2024")
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}

func TestSaveDraftWritesUnderCurrentDate(t *testing.T) {
	session, store, _, notifier, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Backfilling")))

	session.SaveDraft(ctx, false)

	draft, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	require.True(t, ok)
	assert.Equal(t, "Backfilling", draft.ActivityToday)
	assert.Equal(t, 0, notifier.count())
}

func TestSaveDraftBeforeDateSelectionIsIgnored(t *testing.T) {
	session, store, _, _, _ := newTestSession(t)
	session.SaveDraft(context.Background(), false)
	assert.Equal(t, 0, store.Len())
}

func TestExplicitSaveFailureNotifiesOnce(t *testing.T) {
	remote := newFakeRemote()
	notifier := &recordingNotifier{}
	session := NewReportSession("Riverside Tower", failingStore{}, remote, &recordingExporter{}, notifier)
	defer session.Close()
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	session.SaveDraft(ctx, false)

	assert.Equal(t, 1, notifier.count())
}

func TestSilentSaveFailureStaysSilent(t *testing.T) {
	remote := newFakeRemote()
	notifier := &recordingNotifier{}
	session := NewReportSession("Riverside Tower", failingStore{}, remote, &recordingExporter{}, notifier)
	defer session.Close()
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	session.SaveDraft(ctx, true)

	assert.Equal(t, 0, notifier.count())
}

func TestValidationPriorityOrder(t *testing.T) {
	store := drafts.NewMemoryStore()
	remote := newFakeRemote()
	session := NewReportSession("", store, remote, &recordingExporter{}, &recordingNotifier{})
	defer session.Close()

	// Everything missing: project name wins
	err := session.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "project name is required", verr.Reason)

	// Project present, date missing
	session2 := NewReportSession("Riverside Tower", store, remote, &recordingExporter{}, &recordingNotifier{})
	defer session2.Close()
	err = session2.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "report date is required", verr.Reason)

	// Project and date present, activity missing
	require.NoError(t, session2.SetReportDate(context.Background(), "2024-01-10"))
	err = session2.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "activity description is required", verr.Reason)

	// All present
	require.NoError(t, session2.UpdateFields(activityReq("Shuttering")))
	assert.NoError(t, session2.Validate())
}

func TestSubmitHappyPath(t *testing.T) {
	session, store, remote, notifier, exporter := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	team := []models.ResourceRow{
		{ID: "pm", Description: "Project Manager", Prev: 1, Today: 2, Accumulated: 3},
		{ID: "blank"}, // must be cleaned away on submit
	}
	require.NoError(t, session.UpdateFields(&models.UpdateFieldsRequest{
		ActivityToday:  strPtr("Slab pour level 3"),
		ManagementTeam: &team,
	}))
	session.SaveDraft(ctx, false)

	require.NoError(t, session.Submit(ctx))

	// Remote has the cleaned snapshot and the submitted flag
	saved := remote.reports[remoteKey("Riverside Tower", "2024-01-10")]
	require.NotNil(t, saved)
	require.Len(t, saved.ManagementTeam, 1)
	assert.Equal(t, "pm", saved.ManagementTeam[0].ID)
	assert.True(t, remote.submitted[remoteKey("Riverside Tower", "2024-01-10")])

	// Submitted day's draft is gone, next day's template is seeded
	_, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	assert.False(t, ok)

	next, ok := store.Load(ctx, "Riverside Tower", "2024-01-11")
	require.True(t, ok)
	assert.Equal(t, "2024-01-11", next.ReportDate)
	assert.Empty(t, next.ActivityToday)
	require.Len(t, next.ManagementTeam, 1)
	assert.Equal(t, 3.0, next.ManagementTeam[0].Prev)
	assert.Equal(t, 0.0, next.ManagementTeam[0].Today)

	// One export dispatch, no failure notifications
	assert.Len(t, exporter.snapshots, 1)
	assert.Equal(t, 0, notifier.count())
}

func TestSubmitRemoteSaveFailureAbortsBeforeLocalCleanup(t *testing.T) {
	session, store, remote, notifier, exporter := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Waterproofing")))
	session.SaveDraft(ctx, false)

	remote.saveErr = errors.New("503 from server")

	err := session.Submit(ctx)
	var rerr *RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "save", rerr.Op)

	// Submit never ran, draft survived, exactly one notification
	assert.Equal(t, 0, remote.submitCalls)
	_, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	assert.True(t, ok)
	_, ok = store.Load(ctx, "Riverside Tower", "2024-01-11")
	assert.False(t, ok)
	assert.Equal(t, 1, notifier.count())
	assert.Empty(t, exporter.snapshots)

	// The failure clears the busy flag; a retry can succeed
	remote.saveErr = nil
	require.NoError(t, session.Submit(ctx))
}

func TestSubmitRemoteSubmitFailureAbortsBeforeLocalCleanup(t *testing.T) {
	session, store, remote, notifier, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Waterproofing")))
	session.SaveDraft(ctx, false)

	remote.submitErr = errors.New("409 already closed")

	err := session.Submit(ctx)
	var rerr *RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "submit", rerr.Op)

	_, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	assert.True(t, ok)
	assert.Equal(t, 1, notifier.count())
}

func TestSubmitValidationFailureNotifiesOnce(t *testing.T) {
	session, _, remote, notifier, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	// No activity text

	err := session.Submit(ctx)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "activity description is required", verr.Reason)
	assert.Equal(t, 0, remote.saveCalls)
	assert.Equal(t, 1, notifier.count())
}

func TestSubmitWhileInFlightReturnsBusy(t *testing.T) {
	session, _, remote, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Grouting")))

	remote.saveEntered = make(chan struct{})
	remote.saveRelease = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- session.Submit(ctx) }()

	<-remote.saveEntered
	err := session.Submit(ctx)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(remote.saveRelease)
	require.NoError(t, <-done)
}

func TestClearResetsFieldsAndDropsDraft(t *testing.T) {
	session, store, _, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Scaffolding")))
	session.SaveDraft(ctx, false)

	require.NoError(t, session.Clear(ctx))

	snap := session.Snapshot()
	assert.Equal(t, "Riverside Tower", snap.ProjectName)
	assert.Equal(t, "2024-01-10", snap.ReportDate)
	assert.Empty(t, snap.ActivityToday)

	_, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
	assert.False(t, ok)
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	session, _, _, _, _ := newTestSession(t)
	session.Close()

	ctx := context.Background()
	assert.ErrorIs(t, session.SetReportDate(ctx, "2024-01-10"), ErrSessionClosed)
	assert.ErrorIs(t, session.UpdateFields(activityReq("x")), ErrSessionClosed)
	assert.ErrorIs(t, session.Submit(ctx), ErrSessionClosed)
	assert.ErrorIs(t, session.Clear(ctx), ErrSessionClosed)
}

func TestAutosaveFlushesPeriodically(t *testing.T) {
	store := drafts.NewMemoryStore()
	remote := newFakeRemote()
	session := NewReportSession("Riverside Tower", store, remote, &recordingExporter{}, &recordingNotifier{})
	session.SetAutosaveInterval(10 * time.Millisecond)
	defer session.Close()
	ctx := context.Background()

	require.NoError(t, session.SetReportDate(ctx, "2024-01-10"))
	require.NoError(t, session.UpdateFields(activityReq("Night shift pour")))

	session.StartAutosave()

	require.Eventually(t, func() bool {
		draft, ok := store.Load(ctx, "Riverside Tower", "2024-01-10")
		return ok && draft.ActivityToday == "Night shift pour"
	}, time.Second, 5*time.Millisecond)
}

func strPtr(s string) *string { return &s }
