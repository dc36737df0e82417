package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"github.com/learnloop/campaign-engine/pkg/events"
	"github.com/learnloop/campaign-engine/pkg/mailer"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"
)

// --- in-memory repositories mirroring the conditional writes of the mongo implementations ---

type fakeCampaignRepo struct {
	mu          sync.Mutex
	campaigns   map[string]*models.Campaign
	statsWrites int
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: map[string]*models.Campaign{}}
}

func (r *fakeCampaignRepo) put(c *models.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
}

func (r *fakeCampaignRepo) FindByID(_ context.Context, id string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.NewNotFound("campaign", id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) FindPublishedWithReminders(context.Context) ([]*models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool {
		return c.Metadata.IsPublished && c.Automation != nil && c.Automation.SendReminders
	}), nil
}

func (r *fakeCampaignRepo) FindPublishedRecurring(context.Context) ([]*models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool {
		return c.Metadata.IsPublished && c.IsRecurring()
	}), nil
}

func (r *fakeCampaignRepo) UpdateStats(_ context.Context, id string, stats models.CampaignStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return apperrors.NewNotFound("campaign", id)
	}
	c.Stats = stats
	r.statsWrites++
	return nil
}

func (r *fakeCampaignRepo) filter(keep func(*models.Campaign) bool) []*models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeCampaignRepo) stats(id string) models.CampaignStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id].Stats
}

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]*models.Enrollment
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{enrollments: map[string]*models.Enrollment{}}
}

func copyEnrollment(e *models.Enrollment) *models.Enrollment {
	cp := *e
	if e.ModuleProgress != nil {
		cp.ModuleProgress = make(map[string]models.ModuleState, len(e.ModuleProgress))
		for k, v := range e.ModuleProgress {
			cp.ModuleProgress[k] = v
		}
	}
	return &cp
}

func (r *fakeEnrollmentRepo) get(id string) *models.Enrollment {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return nil
	}
	return copyEnrollment(e)
}

func (r *fakeEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if e := r.get(id); e != nil {
		return e, nil
	}
	return nil, apperrors.NewNotFound("enrollment", id)
}

func (r *fakeEnrollmentRepo) CreateIfAbsent(_ context.Context, e *models.Enrollment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enrollments[e.ID]; ok {
		return false, nil
	}
	r.enrollments[e.ID] = copyEnrollment(e)
	return true, nil
}

func (r *fakeEnrollmentRepo) FindByCampaignAndStatuses(_ context.Context, campaignID string, statuses []models.EnrollmentStatus) ([]*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Enrollment
	for _, e := range r.enrollments {
		if e.CampaignID != campaignID {
			continue
		}
		for _, s := range statuses {
			if e.Status == s {
				out = append(out, copyEnrollment(e))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEnrollmentRepo) CountByStatus(_ context.Context, campaignID string) (map[models.EnrollmentStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.EnrollmentStatus]int{}
	for _, e := range r.enrollments {
		if e.CampaignID == campaignID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func (r *fakeEnrollmentRepo) update(id string, fn func(e *models.Enrollment) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return false, apperrors.NewNotFound("enrollment", id)
	}
	if e.ModuleProgress == nil {
		e.ModuleProgress = map[string]models.ModuleState{}
	}
	return fn(e), nil
}

func (r *fakeEnrollmentRepo) MarkVideoFinished(_ context.Context, id, itemID string, p repositories.VideoProgress) (bool, error) {
	var first bool
	_, err := r.update(id, func(e *models.Enrollment) bool {
		state := e.ModuleProgress[itemID]
		first = !state.VideoFinished
		state.VideoFinished = true
		state.QuestionTarget = p.QuestionTarget
		state.TotalDuration = p.TotalDuration
		if p.WatchedDuration > state.WatchedDuration {
			state.WatchedDuration = p.WatchedDuration
		}
		e.ModuleProgress[itemID] = state
		return true
	})
	return first, err
}

func (r *fakeEnrollmentRepo) IncrementQuestionsAnswered(_ context.Context, id, itemID, questionID string, target int) (bool, error) {
	return r.update(id, func(e *models.Enrollment) bool {
		state := e.ModuleProgress[itemID]
		if state.QuestionsAnswered >= target || slices.Contains(state.AnsweredQuestions, questionID) {
			return false
		}
		state.QuestionsAnswered++
		state.AnsweredQuestions = append(slices.Clone(state.AnsweredQuestions), questionID)
		state.QuestionTarget = target
		e.ModuleProgress[itemID] = state
		return true
	})
}

func (r *fakeEnrollmentRepo) RefreshModuleCompletion(_ context.Context, id, itemID string) error {
	_, err := r.update(id, func(e *models.Enrollment) bool {
		state, ok := e.ModuleProgress[itemID]
		if !ok || state.Completed {
			return false
		}
		if state.VideoFinished && state.QuestionsAnswered >= state.QuestionTarget {
			state.Completed = true
			e.ModuleProgress[itemID] = state
			return true
		}
		return false
	})
	return err
}

func (r *fakeEnrollmentRepo) TransitionStatus(_ context.Context, id string, from, to models.EnrollmentStatus, at time.Time) (bool, error) {
	return r.update(id, func(e *models.Enrollment) bool {
		if e.Status != from {
			return false
		}
		e.Status = to
		switch to {
		case models.StatusInProgress:
			e.StartedAt = &at
		case models.StatusCompleted:
			e.CompletedAt = &at
		}
		return true
	})
}

func (r *fakeEnrollmentRepo) RecordAccess(_ context.Context, id string, at time.Time) error {
	_, err := r.update(id, func(e *models.Enrollment) bool {
		e.AccessCount++
		e.LastAccessedAt = &at
		return true
	})
	return err
}

func (r *fakeEnrollmentRepo) AddXP(_ context.Context, id string, xp int) error {
	_, err := r.update(id, func(e *models.Enrollment) bool {
		e.XPEarned += xp
		return true
	})
	return err
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses map[string]*models.Response
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{responses: map[string]*models.Response{}}
}

func (r *fakeResponseRepo) CreateIfAbsent(_ context.Context, resp *models.Response) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responses[resp.ID]; ok {
		return false, nil
	}
	cp := *resp
	r.responses[resp.ID] = &cp
	return true, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[primitive.ObjectID]*models.Notification
	order         []primitive.ObjectID
	findErr       error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: map[primitive.ObjectID]*models.Notification{}}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.ScheduledFor
	}
	n.UpdatedAt = n.CreatedAt
	cp := *n
	r.notifications[n.ID] = &cp
	r.order = append(r.order, n.ID)
	return nil
}

func (r *fakeNotificationRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NewNotFound("notification", id.Hex())
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) FindPending(_ context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.find(limit, func(n *models.Notification) bool {
		return n.Status == models.NotificationPending && !n.ScheduledFor.After(now)
	}), nil
}

func (r *fakeNotificationRepo) FindRetryable(_ context.Context, campaignID string, maxRetries, limit int) ([]*models.Notification, error) {
	return r.find(limit, func(n *models.Notification) bool {
		return n.Status == models.NotificationFailed && n.RetryCount < maxRetries &&
			(campaignID == "" || n.CampaignID == campaignID)
	}), nil
}

func (r *fakeNotificationRepo) find(limit int, keep func(*models.Notification) bool) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, id := range r.order {
		n := r.notifications[id]
		if keep(n) {
			cp := *n
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (r *fakeNotificationRepo) transition(id primitive.ObjectID, from models.NotificationStatus, fn func(n *models.Notification)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.Status != from {
		return false, nil
	}
	fn(n)
	return true, nil
}

func (r *fakeNotificationRepo) MarkSent(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	return r.transition(id, models.NotificationPending, func(n *models.Notification) {
		n.Status = models.NotificationSent
		n.SentAt = &at
		n.UpdatedAt = at
	})
}

func (r *fakeNotificationRepo) MarkFailed(_ context.Context, id primitive.ObjectID, reason string, at time.Time) (bool, error) {
	return r.transition(id, models.NotificationPending, func(n *models.Notification) {
		n.Status = models.NotificationFailed
		n.RetryCount++
		n.FailureReason = reason
		n.UpdatedAt = at
	})
}

func (r *fakeNotificationRepo) MarkPending(_ context.Context, id primitive.ObjectID, scheduledFor time.Time) (bool, error) {
	return r.transition(id, models.NotificationFailed, func(n *models.Notification) {
		n.Status = models.NotificationPending
		n.ScheduledFor = scheduledFor
		n.UpdatedAt = scheduledFor
	})
}

func (r *fakeNotificationRepo) ReminderHistory(_ context.Context, campaignID, userID string) (repositories.ReminderHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var h repositories.ReminderHistory
	for _, n := range r.notifications {
		if n.CampaignID != campaignID || n.UserID != userID || n.Type != models.NotificationReminder || n.Status != models.NotificationSent {
			continue
		}
		h.SentCount++
		if n.SentAt != nil && (h.LastSent == nil || n.SentAt.After(*h.LastSent)) {
			t := *n.SentAt
			h.LastSent = &t
		}
	}
	return h, nil
}

func (r *fakeNotificationRepo) HasPending(_ context.Context, campaignID, userID string, typ models.NotificationType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.CampaignID == campaignID && n.UserID == userID && n.Type == typ && n.Status == models.NotificationPending {
			return true, nil
		}
	}
	return false, nil
}

// all returns every notification in creation order
func (r *fakeNotificationRepo) all() []*models.Notification {
	return r.find(-1, func(*models.Notification) bool { return true })
}

// seedSentReminder stores a reminder already sent at sentAt
func (r *fakeNotificationRepo) seedSentReminder(campaignID, userID string, sentAt time.Time) {
	_ = r.Create(context.Background(), &models.Notification{
		CampaignID:   campaignID,
		UserID:       userID,
		Type:         models.NotificationReminder,
		Status:       models.NotificationSent,
		ScheduledFor: sentAt,
		SentAt:       &sentAt,
	})
}

type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", id)
	}
	return u, nil
}

func (r *fakeUserRepo) FindByOrganization(_ context.Context, organizationID string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		if u.OrganizationID == organizationID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeVideoRepo struct {
	videos map[string]*models.Video
}

func newFakeVideoRepo(videos ...*models.Video) *fakeVideoRepo {
	r := &fakeVideoRepo{videos: map[string]*models.Video{}}
	for _, v := range videos {
		r.videos[v.ID] = v
	}
	return r
}

func (r *fakeVideoRepo) FindByID(_ context.Context, id string) (*models.Video, error) {
	v, ok := r.videos[id]
	if !ok {
		return nil, apperrors.NewNotFound("video", id)
	}
	return v, nil
}

func (r *fakeVideoRepo) FindByIDs(_ context.Context, ids []string) (map[string]*models.Video, error) {
	out := map[string]*models.Video{}
	for _, id := range ids {
		if v, ok := r.videos[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type fakeInstanceRepo struct {
	mu        sync.Mutex
	instances []*models.CampaignInstance
	// preempt simulates another run creating instance numbers first
	preempt map[int]bool
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{preempt: map[int]bool{}}
}

func (r *fakeInstanceRepo) LastInstanceNumber(_ context.Context, parent string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	for _, i := range r.instances {
		if i.ParentCampaignID == parent && i.InstanceNumber > last {
			last = i.InstanceNumber
		}
	}
	return last, nil
}

func (r *fakeInstanceRepo) Create(_ context.Context, instance *models.CampaignInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preempt[instance.InstanceNumber] {
		return apperrors.ErrDuplicate
	}
	for _, i := range r.instances {
		if i.ParentCampaignID == instance.ParentCampaignID && i.InstanceNumber == instance.InstanceNumber {
			return apperrors.ErrDuplicate
		}
	}
	cp := *instance
	r.instances = append(r.instances, &cp)
	return nil
}

// --- test environment ---

var errSMTPDown = errors.New("smtp: 421 service not available")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	clock         *fakeClock
	campaigns     *fakeCampaignRepo
	enrollments   *fakeEnrollmentRepo
	responses     *fakeResponseRepo
	notifications *fakeNotificationRepo
	users         *fakeUserRepo
	videos        *fakeVideoRepo
	instances     *fakeInstanceRepo
	sender        *mailer.MockSender
	events        *events.RecordingPublisher

	stats      *StatsServiceImpl
	notifier   *NotificationServiceImpl
	enroller   *EnrollmentServiceImpl
	progress   *ProgressServiceImpl
	completion *CompletionServiceImpl
	player     *PlayerServiceImpl
	reminders  *ReminderServiceImpl
	recurring  *RecurringServiceImpl
}

var testNow = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, opts NotificationOptions, users []*models.User, videos []*models.Video) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:         &fakeClock{now: testNow},
		campaigns:     newFakeCampaignRepo(),
		enrollments:   newFakeEnrollmentRepo(),
		responses:     newFakeResponseRepo(),
		notifications: newFakeNotificationRepo(),
		users:         newFakeUserRepo(users...),
		videos:        newFakeVideoRepo(videos...),
		instances:     newFakeInstanceRepo(),
		sender:        mailer.NewMockSender(),
		events:        &events.RecordingPublisher{},
	}
	if opts.AppBaseURL == "" {
		opts.AppBaseURL = "https://learn.example.com"
	}

	env.stats = NewStatsService(env.campaigns, env.enrollments)
	env.notifier = NewNotificationService(env.notifications, env.campaigns, env.sender, env.events, opts)
	env.notifier.Clock = env.clock.Now
	env.enroller = NewEnrollmentService(env.enrollments, env.users, env.notifier, env.stats, env.events)
	env.enroller.Clock = env.clock.Now
	env.progress = NewProgressService(env.campaigns, env.enrollments, env.responses, env.videos, env.users, env.stats, XPRewards{PerVideo: 10, PerAnswer: 5})
	env.progress.Clock = env.clock.Now
	env.completion = NewCompletionService(env.campaigns, env.enrollments, env.users, env.notifier, env.stats, env.events)
	env.completion.Clock = env.clock.Now
	env.player = NewPlayerService(env.campaigns, env.videos, env.enrollments)
	env.reminders = NewReminderService(env.campaigns, env.enrollments, env.notifications, env.users, env.notifier)
	env.reminders.Clock = env.clock.Now
	env.recurring = NewRecurringService(env.campaigns, env.instances, env.events, 0)
	env.recurring.Clock = env.clock.Now
	return env
}

func video(id string, questionIDs ...string) *models.Video {
	v := &models.Video{ID: id, Title: "Video " + id, Duration: 120}
	for i, q := range questionIDs {
		v.Questions = append(v.Questions, models.Question{ID: q, Type: models.QuestionFreeText, Prompt: "Prompt " + q, Order: i})
	}
	return v
}

func user(id, org string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", DisplayName: "User " + id, OrganizationID: org}
}
