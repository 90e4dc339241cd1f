package management_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/robertoporfiro/gravitee-management-rest-api/repository"
	"github.com/robertoporfiro/gravitee-management-rest-api/search"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

// MockUsers mocks the status updates the state machine relies on. Every
// other Users method panics.
type MockUsers struct {
	management.Users
	mock.Mock
}

func (m *MockUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status management.UserStatus, opts ...management.StatusUpdateOption) (*management.User, error) {
	args := m.Called(ctx, id, status, opts)
	user, _ := args.Get(0).(*management.User)
	if user != nil {
		for _, opt := range opts {
			opt(user)
		}
	}
	return user, args.Error(1)
}

// MockActivitySink implements management.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event management.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type capturingSink struct {
	mu     sync.Mutex
	events []management.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt management.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) ofType(eventType management.ActivityEventType) []management.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []management.ActivityEvent{}
	for _, evt := range c.events {
		if evt.EventType == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []management.Notification
	err  error
}

func (c *capturingNotifier) Send(_ context.Context, n management.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return c.err
}

func (c *capturingNotifier) notifications() []management.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]management.Notification{}, c.sent...)
}

// waitNotification blocks until a notification for template was sent.
func (c *capturingNotifier) waitNotification(t *testing.T, template management.NotificationTemplate) management.Notification {
	t.Helper()
	var found management.Notification
	require.Eventually(t, func() bool {
		for _, n := range c.notifications() {
			if n.Template == template {
				found = n
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	return found
}

type stubFeatureGate struct {
	mu      sync.Mutex
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

type testConfig struct {
	signingKey   string
	issuer       string
	portalURL    string
	registration bool
	anonymize    bool
	hashid       bool
	ttls         map[management.TokenAction]time.Duration
	paths        map[management.TokenAction]string
	roles        map[management.RoleScope]string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:   testSigningKey,
		issuer:       management.DefaultTokenIssuer,
		portalURL:    "https://portal.example.com/",
		registration: true,
		roles: map[management.RoleScope]string{
			management.RoleScopeManagement: "USER",
			management.RoleScopePortal:     "USER",
		},
	}
}

func (c *testConfig) GetSigningKey() string { return c.signingKey }
func (c *testConfig) GetIssuer() string     { return c.issuer }
func (c *testConfig) GetTokenTTL(action management.TokenAction) time.Duration {
	if ttl, ok := c.ttls[action]; ok {
		return ttl
	}
	return management.DefaultTokenTTL(action)
}
func (c *testConfig) GetPortalURL() string { return c.portalURL }
func (c *testConfig) GetActionPath(action management.TokenAction) string {
	if path, ok := c.paths[action]; ok {
		return path
	}
	return management.DefaultActionPath(action)
}
func (c *testConfig) GetRegistrationEnabled() bool                     { return c.registration }
func (c *testConfig) GetAnonymizeOnDelete() bool                       { return c.anonymize }
func (c *testConfig) GetDefaultRoles() map[management.RoleScope]string { return c.roles }
func (c *testConfig) GetUseHashid() bool                               { return c.hashid }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	ctx      context.Context
	db       *bun.DB
	repo     management.RepositoryManager
	config   *testConfig
	clock    *testClock
	sink     *capturingSink
	notifier *capturingNotifier
	index    *search.Index
	service  *management.UserService
}

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.DriverSQLite,
		fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.Migrate(ctx, db))
	return db
}

func newTestEnv(t *testing.T, configure ...func(*testConfig)) *testEnv {
	t.Helper()

	env := &testEnv{
		ctx:      context.Background(),
		db:       openTestDB(t),
		config:   newTestConfig(),
		clock:    newTestClock(),
		sink:     &capturingSink{},
		notifier: &capturingNotifier{},
		index:    search.NewIndex(),
	}
	for _, fn := range configure {
		fn(env.config)
	}

	env.repo = management.NewRepositoryManager(env.db)
	env.service = management.NewUserService(env.repo, env.config, env.handlerOptions()...)
	return env
}

func (e *testEnv) handlerOptions(extra ...management.HandlerOption) []management.HandlerOption {
	return append([]management.HandlerOption{
		management.WithClock(e.clock.Now),
		management.WithActivitySink(e.sink),
		management.WithSearchIndexer(e.index),
		management.WithNotifier(e.notifier),
	}, extra...)
}

// seedUser inserts an identity directly in the store.
func (e *testEnv) seedUser(t *testing.T, user *management.User) *management.User {
	t.Helper()
	if user.Source == "" {
		user.Source = management.SourceInternal
	}
	if user.SourceID == "" {
		user.SourceID = user.Email
	}
	created, err := e.repo.Users().Create(e.ctx, user)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedInvitation(t *testing.T, inv *management.Invitation) *management.Invitation {
	t.Helper()
	created, err := e.repo.Invitations().CreateInvitation(e.ctx, inv)
	require.NoError(t, err)
	return created
}

func (e *testEnv) token(t *testing.T, identity management.Identity, action management.TokenAction) string {
	t.Helper()
	tok, err := e.service.IssueActionToken(identity, action, "")
	require.NoError(t, err)
	return tok.Token
}

type testIdentity struct {
	id, email, firstName, lastName string
}

func (i testIdentity) ID() string        { return i.id }
func (i testIdentity) Email() string     { return i.email }
func (i testIdentity) FirstName() string { return i.firstName }
func (i testIdentity) LastName() string  { return i.lastName }
