package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/booking/notify"
	"tolkback/internal/models"
)

type stubJobs struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]models.Job
}

func newStubJobs(jobs ...models.Job) *stubJobs {
	s := &stubJobs{jobs: make(map[int64]models.Job), nextID: 100}
	for _, j := range jobs {
		s.jobs[j.ID] = j
		if j.ID >= s.nextID {
			s.nextID = j.ID + 1
		}
	}
	return s
}

func (s *stubJobs) GetByID(ctx context.Context, id int64) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, models.ErrJobNotFound
	}
	return j, nil
}

func (s *stubJobs) Create(ctx context.Context, job models.Job) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = s.nextID
	s.nextID++
	s.jobs[job.ID] = job
	return job, nil
}

func (s *stubJobs) UpdateDetails(ctx context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok {
		return models.ErrJobNotFound
	}
	stored.FromLanguageID = job.FromLanguageID
	stored.Due = job.Due
	stored.WillExpireAt = job.WillExpireAt
	stored.AdminComments = job.AdminComments
	stored.Reference = job.Reference
	s.jobs[job.ID] = stored
	return nil
}

func (s *stubJobs) SetStatus(ctx context.Context, jobID int64, from, to fsm.Status, change models.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[jobID]
	if !ok || stored.Status != from {
		return models.ErrJobTaken
	}
	stored.Status = to
	if change.AdminComments != nil {
		stored.AdminComments = *change.AdminComments
	}
	if change.SessionTime != nil {
		stored.SessionTime = *change.SessionTime
	}
	if change.CreatedAt != nil {
		stored.CreatedAt = *change.CreatedAt
	}
	if change.EndAt != nil {
		stored.EndAt = change.EndAt
	}
	if change.WithdrawAt != nil {
		stored.WithdrawAt = change.WithdrawAt
	}
	if change.WillExpireAt != nil {
		stored.WillExpireAt = *change.WillExpireAt
	}
	s.jobs[jobID] = stored
	return nil
}

func (s *stubJobs) AcceptPending(ctx context.Context, jobID, translatorID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[jobID]
	if !ok || stored.Status != fsm.StatusPending {
		return models.ErrJobTaken
	}
	stored.Status = fsm.StatusAssigned
	s.jobs[jobID] = stored
	return nil
}

func (s *stubJobs) PendingJobs(ctx context.Context) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, j := range s.jobs {
		if j.Status == fsm.StatusPending {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *stubJobs) ReopenAsNew(ctx context.Context, original models.Job, now, willExpireAt time.Time) (models.Job, error) {
	clone := original
	clone.Status = fsm.StatusPending
	clone.CreatedAt = now
	clone.WillExpireAt = willExpireAt
	clone.EndAt = nil
	clone.WithdrawAt = nil
	clone.SessionTime = ""
	return s.Create(ctx, clone)
}

type stubAssignments struct {
	mu        sync.Mutex
	active    map[int64]models.TranslatorAssignment
	completed map[int64]models.TranslatorAssignment
	busyDue   map[int64][]time.Time
}

func newStubAssignments() *stubAssignments {
	return &stubAssignments{
		active:    make(map[int64]models.TranslatorAssignment),
		completed: make(map[int64]models.TranslatorAssignment),
		busyDue:   make(map[int64][]time.Time),
	}
}

func (s *stubAssignments) assign(jobID, userID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jobID] = models.TranslatorAssignment{ID: jobID, JobID: jobID, UserID: userID, AssignedAt: at}
}

func (s *stubAssignments) Active(ctx context.Context, jobID int64) (models.TranslatorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[jobID]
	if !ok {
		return models.TranslatorAssignment{}, models.ErrNoActiveAssignment
	}
	return a, nil
}

func (s *stubAssignments) Replace(ctx context.Context, jobID, newTranslatorID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.active[jobID]; ok && a.UserID == newTranslatorID {
		return false, nil
	}
	s.active[jobID] = models.TranslatorAssignment{JobID: jobID, UserID: newTranslatorID, AssignedAt: now}
	return true, nil
}

func (s *stubAssignments) Cancel(ctx context.Context, jobID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[jobID]; !ok {
		return models.ErrNoActiveAssignment
	}
	delete(s.active, jobID)
	return nil
}

func (s *stubAssignments) Complete(ctx context.Context, jobID, completedBy int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[jobID]
	if !ok {
		return models.ErrNoActiveAssignment
	}
	a.CompletedAt = &now
	a.CompletedBy = completedBy
	s.completed[jobID] = a
	delete(s.active, jobID)
	return nil
}

func (s *stubAssignments) Delete(ctx context.Context, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
	return nil
}

func (s *stubAssignments) HasDueConflict(ctx context.Context, translatorID int64, due time.Time, excludeJobID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.busyDue[translatorID] {
		if t.Equal(due) {
			return true, nil
		}
	}
	return false, nil
}

type stubUsers struct {
	customers map[int64]models.Customer
	contacts  map[int64]models.ActiveTranslator
	profiles  map[int64]models.TranslatorProfile
	languages map[int64]string
}

func (s *stubUsers) Profile(ctx context.Context, userID int64) (models.TranslatorProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return models.TranslatorProfile{}, models.ErrUserNotFound
	}
	return p, nil
}

func (s *stubUsers) Customer(ctx context.Context, userID int64) (models.Customer, error) {
	c, ok := s.customers[userID]
	if !ok {
		return models.Customer{}, models.ErrUserNotFound
	}
	return c, nil
}

func (s *stubUsers) Contact(ctx context.Context, userID int64) (models.ActiveTranslator, error) {
	t, ok := s.contacts[userID]
	if !ok {
		return models.ActiveTranslator{}, models.ErrUserNotFound
	}
	return t, nil
}

func (s *stubUsers) TranslatorByEmail(ctx context.Context, email string) (models.ActiveTranslator, error) {
	for _, t := range s.contacts {
		if t.Email == email {
			return t, nil
		}
	}
	return models.ActiveTranslator{}, models.ErrUserNotFound
}

func (s *stubUsers) LanguageName(ctx context.Context, languageID int64) (string, error) {
	name, ok := s.languages[languageID]
	if !ok {
		return "", models.ErrLanguageNotFound
	}
	return name, nil
}

type stubMatcher struct {
	candidates []models.TranslatorProfile
}

func (s *stubMatcher) PotentialTranslatorsFor(ctx context.Context, job models.Job) ([]models.TranslatorProfile, error) {
	return s.candidates, nil
}

type sentPush struct {
	title      string
	body       string
	recipients []notify.Recipient
	payload    notify.Payload
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type scheduledPush struct {
	title      string
	body       string
	recipients []notify.Recipient
	payload    notify.Payload
	deliverAt  time.Time
}

type recordingNotifier struct {
	mu        sync.Mutex
	pushes    []sentPush
	scheduled []scheduledPush
	sms       []string
	emails    []sentEmail
}

func (n *recordingNotifier) DispatchPush(ctx context.Context, title, body string, recipients []notify.Recipient, payload notify.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, sentPush{title: title, body: body, recipients: recipients, payload: payload})
}

func (n *recordingNotifier) SchedulePush(ctx context.Context, title, body string, recipients []notify.Recipient, payload notify.Payload, deliverAt time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scheduled = append(n.scheduled, scheduledPush{title: title, body: body, recipients: recipients, payload: payload, deliverAt: deliverAt})
}

func (n *recordingNotifier) DispatchSMS(ctx context.Context, recipients []notify.Recipient, text string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	sent := 0
	for _, r := range recipients {
		if r.Phone == "" {
			continue
		}
		n.sms = append(n.sms, text)
		sent++
	}
	return sent
}

func (n *recordingNotifier) DispatchEmail(ctx context.Context, to, toName, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, sentEmail{to: to, subject: subject, body: body})
}

type stubLocation struct {
	same map[int64]bool // translator id -> in area; missing means true
}

func (s stubLocation) SameServiceArea(ctx context.Context, customerID, translatorID int64) (bool, error) {
	if s.same == nil {
		return true, nil
	}
	ok, found := s.same[translatorID]
	if !found {
		return true, nil
	}
	return ok, nil
}

type fixture struct {
	jobs        *stubJobs
	assignments *stubAssignments
	users       *stubUsers
	matcher     *stubMatcher
	notifier    *recordingNotifier
	location    stubLocation
	svc         *Service
}

func newFixture(jobs ...models.Job) *fixture {
	f := &fixture{
		jobs:        newStubJobs(jobs...),
		assignments: newStubAssignments(),
		users: &stubUsers{
			customers: map[int64]models.Customer{
				100: {ID: 100, Email: "customer@example.com", Name: "Customer", Phone: "+46700000100"},
			},
			contacts: map[int64]models.ActiveTranslator{
				7: {UserID: 7, Email: "seven@example.com", Name: "Seven", Phone: "+46700000007"},
				8: {UserID: 8, Email: "eight@example.com", Name: "Eight", Phone: "+46700000008"},
			},
			profiles:  map[int64]models.TranslatorProfile{},
			languages: map[int64]string{5: "Spanish", 6: "French"},
		},
		matcher:  &stubMatcher{},
		notifier: &recordingNotifier{},
		location: stubLocation{},
	}
	f.svc = NewService(f.jobs, f.assignments, f.users, f.matcher, f.notifier, f.location, zap.NewNop())
	return f
}
