package chemtrack_test

import (
	"context"
	"database/sql"
	"time"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAuthenticator implements chemtrack.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (string, error) {
	args := m.Called(ctx, identifier, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) SessionFromToken(token string) (chemtrack.Session, error) {
	args := m.Called(token)
	if sess, ok := args.Get(0).(chemtrack.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthenticator) IssueSession(ctx context.Context, profile *chemtrack.Profile) (string, error) {
	args := m.Called(ctx, profile)
	return args.String(0), args.Error(1)
}

// MockProfileFinder implements chemtrack.ProfileFinder
type MockProfileFinder struct {
	mock.Mock
}

func (m *MockProfileFinder) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*chemtrack.Profile, error) {
	args := m.Called(ctx, id)
	if profile, ok := args.Get(0).(*chemtrack.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProfiles mocks the methods the flows under test actually reach. The
// embedded interface covers the rest of the repository surface.
type MockProfiles struct {
	mock.Mock
	chemtrack.Profiles
}

func (m *MockProfiles) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*chemtrack.Profile, error) {
	args := m.Called(ctx, id)
	if profile, ok := args.Get(0).(*chemtrack.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) GetByEmail(ctx context.Context, email string) (*chemtrack.Profile, error) {
	args := m.Called(ctx, email)
	if profile, ok := args.Get(0).(*chemtrack.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) TrackAttemptedLogin(ctx context.Context, profile *chemtrack.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfiles) TrackSuccessfulLogin(ctx context.Context, profile *chemtrack.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfiles) ProvisionTx(ctx context.Context, tx bun.IDB, record *chemtrack.Profile) (*chemtrack.Profile, error) {
	args := m.Called(ctx, tx, record)
	if profile, ok := args.Get(0).(*chemtrack.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) MarkPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockProfiles) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockProfiles) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) (*chemtrack.Profile, error) {
	args := m.Called(ctx, id, isAdmin)
	if profile, ok := args.Get(0).(*chemtrack.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) SetStatus(ctx context.Context, id uuid.UUID, status chemtrack.ProfileStatus) (*chemtrack.Profile, error) {
	args := m.Called(ctx, id, status)
	if profile, ok := args.Get(0).(*chemtrack.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMagicLinks mocks the magic link repository.
type MockMagicLinks struct {
	mock.Mock
	chemtrack.MagicLinks
}

func (m *MockMagicLinks) Create(ctx context.Context, record *chemtrack.MagicLink, criteria ...repository.InsertCriteria) (*chemtrack.MagicLink, error) {
	args := m.Called(ctx, record)
	if link, ok := args.Get(0).(*chemtrack.MagicLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMagicLinks) Claim(ctx context.Context, hash string, now time.Time) (*chemtrack.MagicLink, error) {
	args := m.Called(ctx, hash, now)
	if link, ok := args.Get(0).(*chemtrack.MagicLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMagicLinks) InvalidateForProfile(ctx context.Context, profileID uuid.UUID) error {
	args := m.Called(ctx, profileID)
	return args.Error(0)
}

// mockRepoManager wires the mock repositories behind the manager interface.
// RunInTx invokes the callback directly; the mocks ignore the zero tx.
type mockRepoManager struct {
	profiles   *MockProfiles
	magicLinks *MockMagicLinks
}

func newMockRepoManager() *mockRepoManager {
	return &mockRepoManager{
		profiles:   &MockProfiles{},
		magicLinks: &MockMagicLinks{},
	}
}

func (m *mockRepoManager) Profiles() chemtrack.Profiles     { return m.profiles }
func (m *mockRepoManager) MagicLinks() chemtrack.MagicLinks { return m.magicLinks }
func (m *mockRepoManager) Validate() error                  { return nil }
func (m *mockRepoManager) MustValidate()                    {}

func (m *mockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// capturingSink records every activity event for assertions.
type capturingSink struct {
	events []chemtrack.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt chemtrack.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

// mockConfig implements chemtrack.Config with test values.
type mockConfig struct {
	timeout time.Duration
}

func (mockConfig) GetSigningKey() string      { return "test-signing-key" }
func (mockConfig) GetContextKey() string      { return "chemtrack_session" }
func (mockConfig) GetTokenExpiration() int    { return 1 }
func (mockConfig) GetIssuer() string          { return "chemtrack-test" }
func (mockConfig) GetAudience() []string      { return []string{"chemtrack-test"} }
func (c mockConfig) GetProfileFetchTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return time.Second
}

// testSession is a minimal chemtrack.Session implementation.
type testSession struct {
	userID string
	email  string
}

func (s testSession) GetUserID() string { return s.userID }
func (s testSession) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.userID)
}
func (s testSession) GetEmail() string         { return s.email }
func (s testSession) GetAudience() []string    { return []string{"chemtrack-test"} }
func (s testSession) GetIssuer() string        { return "chemtrack-test" }
func (s testSession) GetIssuedAt() *time.Time  { return nil }
func (s testSession) GetData() map[string]any  { return nil }

func boolPtr(v bool) *bool { return &v }

func activeProfile(isAdmin bool, hasReset *bool) *chemtrack.Profile {
	return &chemtrack.Profile{
		ID:            uuid.New(),
		Email:         "person@example.com",
		IsAdmin:       isAdmin,
		Status:        chemtrack.ProfileStatusActive,
		ResetPassword: hasReset,
	}
}
