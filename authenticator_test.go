package chemtrack_test

import (
	"context"
	"testing"
	"time"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoginHappyPath(t *testing.T) {
	ctx := context.Background()

	hash, err := chemtrack.HashPassword("super-secret-pass")
	require.NoError(t, err)

	profile := activeProfile(false, boolPtr(true))
	profile.PasswordHash = hash

	profiles := &MockProfiles{}
	profiles.On("GetByEmail", ctx, profile.Email).Return(profile, nil).Once()
	profiles.On("TrackSuccessfulLogin", ctx, profile).Return(nil).Once()

	sink := &capturingSink{}
	auther := chemtrack.NewAuthenticator(profiles, mockConfig{}).WithActivitySink(sink)

	token, err := auther.Login(ctx, profile.Email, "super-secret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	sess, err := auther.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, profile.ID.String(), sess.GetUserID())
	assert.Equal(t, profile.Email, sess.GetEmail())

	require.Len(t, sink.events, 1)
	assert.Equal(t, chemtrack.ActivityEventLoginSuccess, sink.events[0].EventType)
	profiles.AssertExpectations(t)
}

func TestLoginWrongPasswordTracksAttempt(t *testing.T) {
	ctx := context.Background()

	hash, err := chemtrack.HashPassword("correct-password")
	require.NoError(t, err)

	profile := activeProfile(false, boolPtr(true))
	profile.PasswordHash = hash

	profiles := &MockProfiles{}
	profiles.On("GetByEmail", ctx, profile.Email).Return(profile, nil).Once()
	profiles.On("TrackAttemptedLogin", ctx, profile).Return(nil).Once()

	auther := chemtrack.NewAuthenticator(profiles, mockConfig{})

	_, err = auther.Login(ctx, profile.Email, "wrong-password")
	assert.ErrorIs(t, err, chemtrack.ErrMismatchedHashAndPassword)
	profiles.AssertExpectations(t)
}

func TestLoginUnknownIdentifierLooksLikeBadPassword(t *testing.T) {
	ctx := context.Background()

	profiles := &MockProfiles{}
	profiles.On("GetByEmail", ctx, "nobody@example.com").
		Return(nil, repository.NewRecordNotFound())

	auther := chemtrack.NewAuthenticator(profiles, mockConfig{})

	_, err := auther.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, chemtrack.ErrMismatchedHashAndPassword)
}

func TestLoginInactiveProfileRejected(t *testing.T) {
	ctx := context.Background()

	profile := activeProfile(false, boolPtr(true))
	profile.Status = chemtrack.ProfileStatusInactive

	profiles := &MockProfiles{}
	profiles.On("GetByEmail", ctx, profile.Email).Return(profile, nil)

	auther := chemtrack.NewAuthenticator(profiles, mockConfig{})

	_, err := auther.Login(ctx, profile.Email, "whatever")
	assert.ErrorIs(t, err, chemtrack.ErrProfileInactive)
}

func TestLoginTooManyAttemptsWithinCooldown(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	profile := activeProfile(false, boolPtr(true))
	profile.LoginAttempts = chemtrack.MaxLoginAttempts + 1
	profile.LoginAttemptAt = &now

	profiles := &MockProfiles{}
	profiles.On("GetByEmail", ctx, profile.Email).Return(profile, nil)

	auther := chemtrack.NewAuthenticator(profiles, mockConfig{})

	_, err := auther.Login(ctx, profile.Email, "whatever")
	assert.ErrorIs(t, err, chemtrack.ErrTooManyLoginAttempts)
	profiles.AssertNotCalled(t, "TrackAttemptedLogin", mock.Anything, mock.Anything)
}

func TestIssueSessionRequiresActiveProfile(t *testing.T) {
	auther := chemtrack.NewAuthenticator(&MockProfiles{}, mockConfig{})

	_, err := auther.IssueSession(context.Background(), nil)
	assert.ErrorIs(t, err, chemtrack.ErrProfileMissing)

	inactive := activeProfile(false, boolPtr(true))
	inactive.Status = chemtrack.ProfileStatusInactive

	_, err = auther.IssueSession(context.Background(), inactive)
	assert.ErrorIs(t, err, chemtrack.ErrProfileInactive)
}

func TestIssueSessionSignsForVerifiedProfile(t *testing.T) {
	auther := chemtrack.NewAuthenticator(&MockProfiles{}, mockConfig{})
	profile := activeProfile(true, boolPtr(true))

	token, err := auther.IssueSession(context.Background(), profile)
	require.NoError(t, err)

	sess, err := auther.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, profile.ID.String(), sess.GetUserID())
}
