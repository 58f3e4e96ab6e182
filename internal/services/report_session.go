package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"dcr-backend/internal/drafts"
	"dcr-backend/internal/ledger"
	"dcr-backend/internal/metrics"
	"dcr-backend/internal/models"
	"dcr-backend/internal/notify"
	"dcr-backend/internal/repositories"
	"dcr-backend/internal/timeutil"
)

// DefaultAutosaveInterval is how often the session flushes its working copy
// to the draft store, independent of edits.
const DefaultAutosaveInterval = 30 * time.Second

// RemoteReports is the server-of-record contract the session works against.
// Load reports a miss with repositories.ErrNotFound; the session treats a miss
// and a network failure the same way (fall back to the local draft).
type RemoteReports interface {
	Load(ctx context.Context, project, dateKey string) (*models.ReportData, error)
	Save(ctx context.Context, data *models.ReportData) error
	Submit(ctx context.Context, project, dateKey string) error
}

// ExportDispatcher receives the finalized snapshot after a successful
// submission, with the report date coerced back to a calendar-date value.
type ExportDispatcher interface {
	Dispatch(ctx context.Context, data *models.ReportData, reportDate time.Time)
}

// ReportSession owns the in-memory working copy of one project's daily report
// and sequences every cross-cutting behavior: the date-change protocol,
// autosave, validation, submission and carry-forward.
//
// All exported methods serialize on the session mutex, which stands in for the
// single-threaded event loop of the browser form this service backs. Submit
// releases the mutex around its remote calls and is guarded by the busy flag
// instead, so a double-click cannot submit twice.
type ReportSession struct {
	mu sync.Mutex

	project  string
	data     models.ReportData
	drafts   drafts.Store
	remote   RemoteReports
	exporter ExportDispatcher
	notifier notify.Notifier

	// lastDateKey is the last processed calendar day, empty until the first
	// selection. Once set it never reverts, which makes it the one-shot
	// guard for the initial remote load too. It is updated
	// synchronously before any store or network I/O for the transition,
	// so rapid date changes each see the correct outgoing snapshot.
	lastDateKey string

	submitting bool
	closed     bool

	autosaveInterval time.Duration
	stopCh           chan struct{}
	wg               sync.WaitGroup
}

// NewReportSession creates a session for one project. Autosave does not run
// until StartAutosave is called.
func NewReportSession(project string, draftStore drafts.Store, remote RemoteReports, exporter ExportDispatcher, notifier notify.Notifier) *ReportSession {
	return &ReportSession{
		project:          project,
		data:             models.ReportData{ProjectName: project},
		drafts:           draftStore,
		remote:           remote,
		exporter:         exporter,
		notifier:         notifier,
		autosaveInterval: DefaultAutosaveInterval,
		stopCh:           make(chan struct{}),
	}
}

// SetAutosaveInterval overrides the autosave period. Only effective before
// StartAutosave.
func (s *ReportSession) SetAutosaveInterval(d time.Duration) {
	s.autosaveInterval = d
}

// Project returns the project this session edits.
func (s *ReportSession) Project() string {
	return s.project
}

// Snapshot returns a copy of the current in-memory report.
func (s *ReportSession) Snapshot() *models.ReportData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// CurrentDateKey returns the day key of the report being edited, empty when
// no date has been selected yet.
func (s *ReportSession) CurrentDateKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDateKey
}

// SetReportDate runs the date-change protocol.
//
// First selection: load the remote report for that day; on miss or error fall
// back to the local draft; on miss start from empty defaults. Every later
// change to a different day persists the outgoing snapshot to the draft store
// and installs the carry-forward of its resource rows as the new day - the
// remote store and any stale draft for the target day are deliberately not
// consulted on this path. Selecting the already-current day is a no-op.
func (s *ReportSession) SetReportDate(ctx context.Context, date string) error {
	day, err := timeutil.ParseDayKey(date)
	if err != nil {
		return &ValidationError{Reason: "invalid report date: " + date}
	}
	dateKey := timeutil.DayKey(day)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if s.lastDateKey == "" {
		s.lastDateKey = dateKey
		s.firstSelection(ctx, dateKey)
		return nil
	}
	if s.lastDateKey == dateKey {
		return nil
	}

	outgoingKey := s.lastDateKey
	s.lastDateKey = dateKey
	s.dateSwitch(ctx, outgoingKey, dateKey)
	return nil
}

func (s *ReportSession) firstSelection(ctx context.Context, dateKey string) {
	remote, err := s.remote.Load(ctx, s.project, dateKey)
	if err == nil && remote != nil {
		s.data = *remote.Clone()
		s.data.ProjectName = s.project
		s.data.ReportDate = dateKey
		return
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		log.Printf("[Session] Remote load failed for %s/%s, falling back to local draft: %v", s.project, dateKey, err)
	}

	if draft, ok := s.drafts.Load(ctx, s.project, dateKey); ok {
		s.data = *draft
		s.data.ProjectName = s.project
		s.data.ReportDate = dateKey
		return
	}

	s.data = s.emptyDefaults(dateKey)
}

func (s *ReportSession) dateSwitch(ctx context.Context, outgoingKey, dateKey string) {
	outgoing := s.data.Clone()
	outgoing.ReportDate = outgoingKey

	// Persist even if unchanged, so last-second edits survive the switch.
	if err := s.drafts.Save(ctx, s.project, outgoingKey, outgoing); err != nil {
		metrics.DraftSavesTotal.WithLabelValues("dateswitch", "error").Inc()
		log.Printf("[Session] Draft save on date switch failed for %s/%s: %v", s.project, outgoingKey, err)
	} else {
		metrics.DraftSavesTotal.WithLabelValues("dateswitch", "ok").Inc()
	}

	// Carry-forward runs on the raw rows; cleaning belongs to submission only.
	s.data = *ledger.CarryForwardReport(outgoing, dateKey)
	metrics.CarryForwardsTotal.Inc()
}

func (s *ReportSession) emptyDefaults(dateKey string) models.ReportData {
	return models.ReportData{
		ProjectName: s.project,
		ReportDate:  dateKey,
	}
}

// UpdateFields merges form edits into the working copy. Resource collections
// are replaced wholesale, matching how the form binds its tables.
func (s *ReportSession) UpdateFields(req *models.UpdateFieldsRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if req.Weather != nil {
		s.data.Weather = *req.Weather
	}
	if req.WeatherPeriod != nil {
		s.data.WeatherPeriod = *req.WeatherPeriod
	}
	if req.Temperature != nil {
		s.data.Temperature = *req.Temperature
	}
	if req.ActivityToday != nil {
		s.data.ActivityToday = *req.ActivityToday
	}
	if req.WorkPlanNextDay != nil {
		s.data.WorkPlanNextDay = *req.WorkPlanNextDay
	}
	if req.ManagementTeam != nil {
		s.data.ManagementTeam = append([]models.ResourceRow(nil), (*req.ManagementTeam)...)
	}
	if req.WorkingTeam != nil {
		s.data.WorkingTeam = append([]models.ResourceRow(nil), (*req.WorkingTeam)...)
	}
	if req.Materials != nil {
		s.data.Materials = append([]models.ResourceRow(nil), (*req.Materials)...)
	}
	if req.Machinery != nil {
		s.data.Machinery = append([]models.ResourceRow(nil), (*req.Machinery)...)
	}
	return nil
}

// SaveDraft writes the current snapshot to the draft store under the current
// date key. It never surfaces an error to the caller: a failed silent save is
// only logged, a failed explicit save additionally produces one notification.
func (s *ReportSession) SaveDraft(ctx context.Context, silent bool) {
	trigger := "explicit"
	if silent {
		trigger = "autosave"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lastDateKey == "" {
		return
	}

	snapshot := s.data.Clone()
	snapshot.ReportDate = s.lastDateKey

	if err := s.drafts.Save(ctx, s.project, s.lastDateKey, snapshot); err != nil {
		metrics.DraftSavesTotal.WithLabelValues(trigger, "error").Inc()
		log.Printf("[Session] Draft save (%s) failed for %s/%s: %v", trigger, s.project, s.lastDateKey, err)
		if !silent {
			s.notifier.Notify(s.project, "Draft save failed", err.Error())
		}
		return
	}
	metrics.DraftSavesTotal.WithLabelValues(trigger, "ok").Inc()
}

// Validate checks required fields in fixed priority order and reports only
// the first failing rule.
func (s *ReportSession) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *ReportSession) validateLocked() error {
	if s.data.ProjectName == "" {
		return &ValidationError{Reason: "project name is required"}
	}
	if s.lastDateKey == "" {
		return &ValidationError{Reason: "report date is required"}
	}
	if s.data.ActivityToday == "" {
		return &ValidationError{Reason: "activity description is required"}
	}
	return nil
}

// Submit runs the submission sequence: validate, clean the resource rows,
// normalize the date, save and submit remotely, drop the local draft and seed
// the next day's draft with the carry-forward template. A remote failure
// aborts before any local cleanup and leaves the current draft intact.
func (s *ReportSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues("validation").Inc()
		s.notifier.Notify(s.project, "Cannot submit report", err.Error())
		return err
	}

	s.submitting = true
	dateKey := s.lastDateKey

	finalized := s.data.Clone()
	finalized.ReportDate = dateKey // plain calendar day, not a timestamp
	finalized.ManagementTeam = ledger.Clean(finalized.ManagementTeam)
	finalized.WorkingTeam = ledger.Clean(finalized.WorkingTeam)
	finalized.Materials = ledger.Clean(finalized.Materials)
	finalized.Machinery = ledger.Clean(finalized.Machinery)
	s.mu.Unlock()

	// Remote calls run outside the session lock; the busy flag keeps the
	// sequence non-reentrant.
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	if err := s.remote.Save(ctx, finalized); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("remote").Inc()
		s.notifier.Notify(s.project, "Submission failed", "could not save report: "+err.Error())
		return &RemoteError{Op: "save", Err: err}
	}
	if err := s.remote.Submit(ctx, s.project, dateKey); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("remote").Inc()
		s.notifier.Notify(s.project, "Submission failed", "could not submit report: "+err.Error())
		return &RemoteError{Op: "submit", Err: err}
	}

	// Local cleanup and carry-forward only happen after remote success.
	// Draft store failures past this point are best-effort by design.
	if err := s.drafts.Remove(ctx, s.project, dateKey); err != nil {
		log.Printf("[Session] Draft remove after submit failed for %s/%s: %v", s.project, dateKey, err)
	}

	nextKey, err := timeutil.NextDayKey(dateKey)
	if err == nil {
		template := ledger.CarryForwardReport(finalized, nextKey)
		metrics.CarryForwardsTotal.Inc()
		if err := s.drafts.Save(ctx, s.project, nextKey, template); err != nil {
			log.Printf("[Session] Next-day draft seed failed for %s/%s: %v", s.project, nextKey, err)
		}
	}

	s.mu.Lock()
	if !s.closed && s.lastDateKey == dateKey {
		s.data = *finalized.Clone()
	}
	s.mu.Unlock()

	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()

	if s.exporter != nil {
		if day, perr := timeutil.ParseDayKey(dateKey); perr == nil {
			s.exporter.Dispatch(ctx, finalized, day)
		}
	}
	return nil
}

// Clear resets the in-memory fields to defaults and deletes the current
// day's draft. The remote store is untouched.
func (s *ReportSession) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.data = s.emptyDefaults(s.lastDateKey)
	if s.lastDateKey == "" {
		return nil
	}
	if err := s.drafts.Remove(ctx, s.project, s.lastDateKey); err != nil {
		log.Printf("[Session] Draft remove on clear failed for %s/%s: %v", s.project, s.lastDateKey, err)
	}
	return nil
}

// StartAutosave begins the periodic silent draft flush.
func (s *ReportSession) StartAutosave() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.autosaveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				s.SaveDraft(ctx, true)
				cancel()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Close stops the autosave timer and marks the session torn down. In-flight
// work completes but its results are discarded.
func (s *ReportSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}
