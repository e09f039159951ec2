package chemtrack_test

import (
	"context"
	"testing"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	goerrors "github.com/goliatone/go-errors"
)

func TestBootstrapperPublicRouteSkipsAllChecks(t *testing.T) {
	auth := &MockAuthenticator{}
	finder := &MockProfileFinder{}

	b := chemtrack.NewBootstrapper(auth, finder, mockConfig{})

	decision := b.Evaluate(context.Background(), "", chemtrack.RouteSignIn, chemtrack.RequirementNone)
	assert.True(t, decision.Authorized())
	auth.AssertNotCalled(t, "SessionFromToken", mock.Anything)
	finder.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestBootstrapperEmptyTokenIsNoSession(t *testing.T) {
	b := chemtrack.NewBootstrapper(&MockAuthenticator{}, &MockProfileFinder{}, mockConfig{})

	decision := b.Evaluate(context.Background(), "", chemtrack.RouteDashboard, chemtrack.RequirementAuthenticated)

	assert.Equal(t, chemtrack.StateNoSession, decision.State)
	assert.Equal(t, chemtrack.RouteSignIn, decision.Redirect)
	assert.Empty(t, decision.Notice)
}

func TestBootstrapperRejectedTokenIsNoSession(t *testing.T) {
	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "expired-token").Return(nil, chemtrack.ErrTokenExpired)

	b := chemtrack.NewBootstrapper(auth, &MockProfileFinder{}, mockConfig{})

	decision := b.Evaluate(context.Background(), "expired-token", chemtrack.RouteDashboard, chemtrack.RequirementAuthenticated)

	assert.Equal(t, chemtrack.StateNoSession, decision.State)
	assert.ErrorIs(t, decision.Err, chemtrack.ErrNoSession)
	auth.AssertExpectations(t)
}

func TestBootstrapperMissingProfileSurfacesNotice(t *testing.T) {
	profile := activeProfile(false, boolPtr(true))
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "good-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).
		Return(nil, repository.NewRecordNotFound())

	b := chemtrack.NewBootstrapper(auth, finder, mockConfig{})

	decision := b.Evaluate(context.Background(), "good-token", chemtrack.RouteDashboard, chemtrack.RequirementAuthenticated)

	assert.Equal(t, chemtrack.StateNoSession, decision.State)
	assert.ErrorIs(t, decision.Err, chemtrack.ErrProfileMissing)
	assert.NotEmpty(t, decision.Notice)
	finder.AssertExpectations(t)
}

func TestBootstrapperFetchErrorFailsClosed(t *testing.T) {
	profile := activeProfile(true, boolPtr(true))
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "good-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).
		Return(nil, goerrors.New("backend unavailable", goerrors.CategoryInternal))

	b := chemtrack.NewBootstrapper(auth, finder, mockConfig{})

	decision := b.Evaluate(context.Background(), "good-token", chemtrack.RouteAdminUsers, chemtrack.RequirementAdminOnly)

	// an admin with a live session is still bounced when the profile
	// cannot be verified
	assert.Equal(t, chemtrack.StateNoSession, decision.State)
	assert.Equal(t, chemtrack.RouteSignIn, decision.Redirect)
	assert.ErrorIs(t, decision.Err, chemtrack.ErrProfileFetch)
	assert.NotEmpty(t, decision.Notice)
}

func TestBootstrapperHappyPathAuthorizes(t *testing.T) {
	profile := activeProfile(true, boolPtr(true))
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "good-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).Return(profile, nil)

	b := chemtrack.NewBootstrapper(auth, finder, mockConfig{})

	decision := b.Evaluate(context.Background(), "good-token", chemtrack.RouteAdminUsers, chemtrack.RequirementAdminOnly)

	require.True(t, decision.Authorized())
	assert.Same(t, profile, decision.Profile)
}

func TestBootstrapperResetGateWinsOverRole(t *testing.T) {
	profile := activeProfile(true, nil)
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "good-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).Return(profile, nil)

	b := chemtrack.NewBootstrapper(auth, finder, mockConfig{})

	decision := b.Evaluate(context.Background(), "good-token", chemtrack.RouteAdminDashboard, chemtrack.RequirementAdminOnly)

	assert.Equal(t, chemtrack.StateNeedsPasswordReset, decision.State)
	assert.Equal(t, chemtrack.RouteResetPassword, decision.Redirect)
}
