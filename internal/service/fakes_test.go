package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/metrics"
	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/repository"
	"github.com/iliyamo/todo-api/internal/utils"
)

func nowUTC() time.Time { return time.Now().UTC() }

// In-memory store fakes. They mirror the MySQL repositories' contract:
// sql.ErrNoRows for missing rows, repository.ErrDuplicate for unique
// index violations.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uuid.UUID]*model.User{}}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func (s *fakeUserStore) violates(u *model.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if u.LocalUsername != nil && other.LocalUsername != nil && *u.LocalUsername == *other.LocalUsername {
			return true
		}
		if u.GoogleSub != nil && other.GoogleSub != nil && *u.GoogleSub == *other.GoogleSub {
			return true
		}
		if u.MSOid != nil && u.MSTid != nil && other.MSOid != nil && other.MSTid != nil &&
			*u.MSOid == *other.MSOid && *u.MSTid == *other.MSTid {
			return true
		}
	}
	return false
}

func (s *fakeUserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.violates(u) {
		return repository.ErrDuplicate
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *fakeUserStore) Update(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return sql.ErrNoRows
	}
	if s.violates(u) {
		return repository.ErrDuplicate
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneUser(u), nil
}

func (s *fakeUserStore) GetByLocalUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.LocalUsername != nil && *u.LocalUsername == username {
			return cloneUser(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeUserStore) GetByGoogleSub(_ context.Context, sub string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.GoogleSub != nil && *u.GoogleSub == sub {
			return cloneUser(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeUserStore) GetByMicrosoft(_ context.Context, oid, tid string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.MSOid != nil && u.MSTid != nil && *u.MSOid == oid && *u.MSTid == tid {
			return cloneUser(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeUserStore) List(_ context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.RefreshSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[uuid.UUID]*model.RefreshSession{}}
}

func (s *fakeSessionStore) Create(_ context.Context, sess *model.RefreshSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sess
	s.sessions[sess.ID] = &c
	return nil
}

func (s *fakeSessionStore) UpdateHash(_ context.Context, id uuid.UUID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	sess.RefreshTokenHash = tokenHash
	return nil
}

func (s *fakeSessionStore) GetByHash(_ context.Context, tokenHash string) (*model.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.RefreshTokenHash != "" && sess.RefreshTokenHash == tokenHash {
			c := *sess
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeSessionStore) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if sess.RevokedAt == nil {
		now := nowUTC()
		sess.RevokedAt = &now
	}
	return nil
}

func (s *fakeSessionStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			now := nowUTC()
			sess.RevokedAt = &now
		}
	}
	return nil
}

func (s *fakeSessionStore) active(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeTokenStore struct {
	mu            sync.Mutex
	resets        map[uuid.UUID]*model.PasswordResetToken
	verifications map[uuid.UUID]*model.EmailVerificationToken
	users         *fakeUserStore
}

func newFakeTokenStore(users *fakeUserStore) *fakeTokenStore {
	return &fakeTokenStore{
		resets:        map[uuid.UUID]*model.PasswordResetToken{},
		verifications: map[uuid.UUID]*model.EmailVerificationToken{},
		users:         users,
	}
}

func (s *fakeTokenStore) CreatePasswordReset(_ context.Context, t *model.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.resets {
		if existing.UserID == t.UserID {
			delete(s.resets, id)
		}
	}
	c := *t
	s.resets[t.ID] = &c
	return nil
}

func (s *fakeTokenStore) GetPasswordResetByHash(_ context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.resets {
		if t.TokenHash == tokenHash && t.UsedAt == nil {
			c := *t
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeTokenStore) MarkPasswordResetUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resets[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := nowUTC()
	t.UsedAt = &now
	return nil
}

func (s *fakeTokenStore) CreateEmailVerification(_ context.Context, t *model.EmailVerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.verifications {
		if existing.UserID == t.UserID {
			delete(s.verifications, id)
		}
	}
	c := *t
	s.verifications[t.ID] = &c
	return nil
}

func (s *fakeTokenStore) GetEmailVerificationByHash(_ context.Context, tokenHash string) (*model.EmailVerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.verifications {
		if t.TokenHash == tokenHash {
			c := *t
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeTokenStore) MarkEmailVerified(ctx context.Context, tokenID, userID uuid.UUID) error {
	s.mu.Lock()
	if t, ok := s.verifications[tokenID]; ok && t.VerifiedAt == nil {
		now := nowUTC()
		t.VerifiedAt = &now
	}
	s.mu.Unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerifiedAt == nil {
		now := nowUTC()
		user.EmailVerifiedAt = &now
		return s.users.Update(ctx, user)
	}
	return nil
}

type fakeTodoStore struct {
	mu    sync.Mutex
	todos map[uuid.UUID]*model.Todo
}

func newFakeTodoStore() *fakeTodoStore {
	return &fakeTodoStore{todos: map[uuid.UUID]*model.Todo{}}
}

func (s *fakeTodoStore) Create(_ context.Context, t *model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.todos[t.ID] = &c
	return nil
}

func (s *fakeTodoStore) Update(_ context.Context, t *model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[t.ID]; !ok {
		return sql.ErrNoRows
	}
	c := *t
	s.todos[t.ID] = &c
	return nil
}

func (s *fakeTodoStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.todos, id)
	return nil
}

func (s *fakeTodoStore) GetByID(_ context.Context, id uuid.UUID) (*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *t
	return &c, nil
}

func (s *fakeTodoStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Todo
	for _, t := range s.todos {
		if t.OwnerID == ownerID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *fakeTodoStore) ListAll(_ context.Context) ([]*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Todo
	for _, t := range s.todos {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

// recordingAuditor collects events for assertions.
type recordingAuditor struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (a *recordingAuditor) Record(_ context.Context, e model.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

// recordingEmail captures outbound tokens so tests can redeem them.
type recordingEmail struct {
	mu                 sync.Mutex
	verificationTokens map[string]string // address -> token
	resetTokens        map[string]string
	changedNotices     []string
}

func newRecordingEmail() *recordingEmail {
	return &recordingEmail{
		verificationTokens: map[string]string{},
		resetTokens:        map[string]string{},
	}
}

func (e *recordingEmail) SendVerification(to, _, token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verificationTokens[to] = token
}

func (e *recordingEmail) SendPasswordReset(to, _, token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetTokens[to] = token
}

func (e *recordingEmail) SendPasswordChanged(to, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changedNotices = append(e.changedNotices, to)
}

func (e *recordingEmail) verificationToken(to string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verificationTokens[to]
}

func (e *recordingEmail) resetToken(to string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetTokens[to]
}

// testEnv bundles a fully wired AuthService over the fakes.
type testEnv struct {
	users    *fakeUserStore
	sessions *fakeSessionStore
	tokens   *fakeTokenStore
	audit    *recordingAuditor
	email    *recordingEmail
	manager  *SessionManager
	auth     *AuthService
}

func newTestEnv() *testEnv {
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	tokens := newFakeTokenStore(users)
	audit := &recordingAuditor{}
	email := newRecordingEmail()

	manager := &SessionManager{
		Sessions:       sessions,
		Users:          users,
		AccessSecret:   "test-access-secret",
		RefreshSecret:  "test-refresh-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
	}
	auth := &AuthService{
		Users:    users,
		Tokens:   tokens,
		Sessions: manager,
		Audit:    audit,
		Email:    email,
		Metrics:  metrics.Nop{},
		Hash:     utils.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
	}
	return &testEnv{
		users: users, sessions: sessions, tokens: tokens,
		audit: audit, email: email, manager: manager, auth: auth,
	}
}
