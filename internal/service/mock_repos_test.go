package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	pkgerrors "thesis-defense/backend/pkg/errors"
	"thesis-defense/backend/pkg/redis"
)

// ════════════════════════════════════════════════════════════
// 内存版 Repository：以 map 存储，返回副本，避免测试间共享指针
// ════════════════════════════════════════════════════════════

// ── User ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Username
	}
	u := *user
	m.users[user.UserID] = &u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByRoles(_ context.Context, roles ...string) ([]model.User, error) {
	want := make(map[string]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []model.User
	for _, u := range m.users {
		if want[u.Role] {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockUserRepo) Search(ctx context.Context, keyword string, roles ...string) ([]model.User, error) {
	users, _ := m.ListByRoles(ctx, roles...)
	if keyword == "" {
		return users, nil
	}
	var out []model.User
	for _, u := range users {
		if strings.Contains(u.Name, keyword) || strings.Contains(strings.ToLower(u.Username), strings.ToLower(keyword)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) lookup(id string) *model.User {
	if u, ok := m.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

// ── Field ──

type mockFieldRepo struct {
	fields map[string]*model.Field
}

func newMockFieldRepo() *mockFieldRepo {
	return &mockFieldRepo{fields: make(map[string]*model.Field)}
}

func (m *mockFieldRepo) Create(_ context.Context, field *model.Field) error {
	f := *field
	m.fields[field.FieldID] = &f
	return nil
}

func (m *mockFieldRepo) GetByID(_ context.Context, id string) (*model.Field, error) {
	if f, ok := m.fields[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFieldRepo) List(_ context.Context) ([]model.Field, error) {
	var out []model.Field
	for _, f := range m.fields {
		if f.IsActive {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ── Form ──

type mockFormRepo struct {
	forms     map[string]*model.ThesisForm
	order     []string
	users     *mockUserRepo
	fields    *mockFieldRepo
	updateErr error // 非空时 Update 直接返回该错误
}

func newMockFormRepo(users *mockUserRepo, fields *mockFieldRepo) *mockFormRepo {
	return &mockFormRepo{forms: make(map[string]*model.ThesisForm), users: users, fields: fields}
}

func (m *mockFormRepo) Create(_ context.Context, form *model.ThesisForm) error {
	if _, ok := m.forms[form.FormID]; ok {
		return pkgerrors.ErrAlreadyExists
	}
	f := *form
	m.forms[form.FormID] = &f
	m.order = append(m.order, form.FormID)
	return nil
}

func (m *mockFormRepo) GetByID(_ context.Context, id string) (*model.ThesisForm, error) {
	f, ok := m.forms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.withRelations(f), nil
}

func (m *mockFormRepo) List(_ context.Context, filter repository.FormFilter) ([]model.ThesisForm, int64, error) {
	var out []model.ThesisForm
	for _, id := range m.order {
		f := m.forms[id]
		if filter.StudentID != "" && f.StudentID != filter.StudentID {
			continue
		}
		if filter.InstructorID != "" && f.InstructorID != filter.InstructorID {
			continue
		}
		if len(filter.States) > 0 && !contains(filter.States, f.State) {
			continue
		}
		out = append(out, *m.withRelations(f))
	}
	return paginate(out, filter.Offset, filter.Limit), int64(len(out)), nil
}

func (m *mockFormRepo) Update(_ context.Context, form *model.ThesisForm) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.forms[form.FormID]
	if !ok || stored.Version != form.Version {
		return pkgerrors.ErrOptimisticLock
	}
	form.Version++
	f := *form
	f.Student, f.Instructor, f.Field = nil, nil, nil
	m.forms[form.FormID] = &f
	return nil
}

func (m *mockFormRepo) withRelations(f *model.ThesisForm) *model.ThesisForm {
	c := *f
	c.Student = m.users.lookup(f.StudentID)
	c.Instructor = m.users.lookup(f.InstructorID)
	if field, ok := m.fields.fields[f.FieldID]; ok {
		fc := *field
		c.Field = &fc
	}
	return &c
}

// ── Meeting ──

type mockMeetingRepo struct {
	meetings map[string]*model.Meeting
	order    []string
	users    *mockUserRepo
	forms    *mockFormRepo
}

func newMockMeetingRepo(users *mockUserRepo, forms *mockFormRepo) *mockMeetingRepo {
	return &mockMeetingRepo{meetings: make(map[string]*model.Meeting), users: users, forms: forms}
}

func (m *mockMeetingRepo) Create(_ context.Context, meeting *model.Meeting) error {
	for _, existing := range m.meetings {
		if existing.FormID == meeting.FormID {
			return pkgerrors.ErrAlreadyExists
		}
	}
	m.meetings[meeting.MeetingID] = cloneMeeting(meeting)
	m.order = append(m.order, meeting.MeetingID)
	return nil
}

func (m *mockMeetingRepo) GetByID(_ context.Context, id string) (*model.Meeting, error) {
	meeting, ok := m.meetings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.withRelations(meeting), nil
}

func (m *mockMeetingRepo) GetByFormID(_ context.Context, formID string) (*model.Meeting, error) {
	for _, meeting := range m.meetings {
		if meeting.FormID == formID {
			return m.withRelations(meeting), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMeetingRepo) List(_ context.Context, filter repository.MeetingFilter) ([]model.Meeting, int64, error) {
	var out []model.Meeting
	for _, id := range m.order {
		meeting := m.meetings[id]
		if filter.StudentID != "" && meeting.StudentID != filter.StudentID {
			continue
		}
		if filter.JuryID != "" && !meeting.ToDomain().HasJury(filter.JuryID) {
			continue
		}
		if len(filter.States) > 0 && !contains(filter.States, meeting.State) {
			continue
		}
		out = append(out, *m.withRelations(meeting))
	}
	return paginate(out, filter.Offset, filter.Limit), int64(len(out)), nil
}

func (m *mockMeetingRepo) Update(_ context.Context, meeting *model.Meeting) error {
	stored, ok := m.meetings[meeting.MeetingID]
	if !ok || stored.Version != meeting.Version {
		return pkgerrors.ErrOptimisticLock
	}
	meeting.Version++
	m.meetings[meeting.MeetingID] = cloneMeeting(meeting)
	return nil
}

func (m *mockMeetingRepo) withRelations(meeting *model.Meeting) *model.Meeting {
	c := cloneMeeting(meeting)
	if f, ok := m.forms.forms[meeting.FormID]; ok {
		c.Form = m.forms.withRelations(f)
	}
	for i := range c.Juries {
		c.Juries[i].Jury = m.users.lookup(c.Juries[i].JuryID)
	}
	return c
}

func cloneMeeting(meeting *model.Meeting) *model.Meeting {
	c := *meeting
	c.Form = nil
	c.Juries = append([]model.MeetingJury(nil), meeting.Juries...)
	for i := range c.Juries {
		c.Juries[i].Jury = nil
	}
	c.Availabilities = append([]model.JuryAvailability(nil), meeting.Availabilities...)
	c.Scores = append([]model.JuryScore(nil), meeting.Scores...)
	return &c
}

// ── TransitionLog ──

type mockTransitionLogRepo struct {
	logs  []model.TransitionLog
	users *mockUserRepo
}

func newMockTransitionLogRepo(users *mockUserRepo) *mockTransitionLogRepo {
	return &mockTransitionLogRepo{users: users}
}

func (m *mockTransitionLogRepo) Create(_ context.Context, log *model.TransitionLog) error {
	if log.LogID == "" {
		log.LogID = "log-" + time.Now().Format("150405.000000000")
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockTransitionLogRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]model.TransitionLog, error) {
	var out []model.TransitionLog
	for _, l := range m.logs {
		if l.EntityType == entityType && l.EntityID == entityID {
			l.Actor = m.users.lookup(l.ActorID)
			out = append(out, l)
		}
	}
	return out, nil
}

// ── Redis 协作方 ──

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	keys []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, redis.ErrLockHeld
	}
	l.held[key] = true
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

type fakePublisher struct {
	channel string
	events  []Event
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return err
	}
	p.channel = channel
	p.events = append(p.events, e)
	return nil
}

// find 最后一条指定名称的事件
func (p *fakePublisher) find(name string) (Event, bool) {
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Event == name {
			return p.events[i], true
		}
	}
	return Event{}, false
}

type fakeBlacklist struct {
	jtis map[string]time.Duration
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{jtis: make(map[string]time.Duration)}
}

func (b *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.jtis[jti] = ttl
	return nil
}

func (b *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := b.jtis[jti]
	return ok, nil
}

// ── 通用辅助 ──

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		return items
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// [自证通过] internal/service/mock_repos_test.go
