package chemtrack_test

import (
	"context"
	"testing"
	"time"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExchangeConsumesLinkOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	profile := activeProfile(false, boolPtr(true))
	raw := "one-time-code"
	hash := chemtrack.HashLinkToken(raw)

	link := &chemtrack.MagicLink{
		ID:        uuid.New(),
		TokenHash: hash,
		Type:      chemtrack.MagicLinkTypeSignIn,
		ProfileID: profile.ID,
		Email:     profile.Email,
		ExpiresAt: now.Add(time.Hour),
	}

	repo := newMockRepoManager()
	repo.magicLinks.On("Claim", ctx, hash, now).Return(link, nil).Once()
	repo.magicLinks.On("Claim", ctx, hash, now).Return(nil, repository.NewRecordNotFound())
	repo.profiles.On("GetByID", ctx, profile.ID.String()).Return(profile, nil).Once()

	auth := &MockAuthenticator{}
	auth.On("IssueSession", ctx, profile).Return("session-token", nil).Once()

	sink := &capturingSink{}
	exchanger := chemtrack.NewMagicLinkExchanger(repo, auth).
		WithActivitySink(sink).
		WithClock(func() time.Time { return now })

	token, got, err := exchanger.Exchange(ctx, chemtrack.ExchangeParams{Code: raw})
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
	assert.Same(t, profile, got)

	// the same code a second time is indistinguishable from an unknown one
	_, _, err = exchanger.Exchange(ctx, chemtrack.ExchangeParams{Code: raw})
	assert.ErrorIs(t, err, chemtrack.ErrExchangeFailed)

	repo.magicLinks.AssertExpectations(t)
	auth.AssertExpectations(t)
}

func TestExchangeAcceptsPreHashedToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	profile := activeProfile(false, boolPtr(true))
	hash := chemtrack.HashLinkToken("whatever")

	link := &chemtrack.MagicLink{
		ID:        uuid.New(),
		TokenHash: hash,
		Type:      chemtrack.MagicLinkTypeRecovery,
		ProfileID: profile.ID,
		ExpiresAt: now.Add(time.Hour),
	}

	repo := newMockRepoManager()
	repo.magicLinks.On("Claim", ctx, hash, mock.Anything).Return(link, nil).Once()
	repo.profiles.On("GetByID", ctx, profile.ID.String()).Return(profile, nil).Once()

	auth := &MockAuthenticator{}
	auth.On("IssueSession", ctx, profile).Return("session-token", nil).Once()

	exchanger := chemtrack.NewMagicLinkExchanger(repo, auth)

	// token_hash is passed through without re-hashing
	token, _, err := exchanger.Exchange(ctx, chemtrack.ExchangeParams{TokenHash: hash})
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
}

func TestExchangeEmptyParamsIsNoSession(t *testing.T) {
	exchanger := chemtrack.NewMagicLinkExchanger(newMockRepoManager(), &MockAuthenticator{})

	_, _, err := exchanger.Exchange(context.Background(), chemtrack.ExchangeParams{})
	assert.ErrorIs(t, err, chemtrack.ErrNoSession)
}

func TestExchangeUnknownCodeFails(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepoManager()
	repo.magicLinks.On("Claim", ctx, mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound())

	sink := &capturingSink{}
	exchanger := chemtrack.NewMagicLinkExchanger(repo, &MockAuthenticator{}).
		WithActivitySink(sink)

	_, _, err := exchanger.Exchange(ctx, chemtrack.ExchangeParams{Code: "bogus"})
	assert.ErrorIs(t, err, chemtrack.ErrExchangeFailed)
	require.Len(t, sink.events, 1)
	assert.Equal(t, chemtrack.ActivityEventLinkRejected, sink.events[0].EventType)
}

func TestExchangeProfileMissingAfterClaim(t *testing.T) {
	ctx := context.Background()
	profileID := uuid.New()
	hash := chemtrack.HashLinkToken("code")

	link := &chemtrack.MagicLink{
		ID:        uuid.New(),
		TokenHash: hash,
		ProfileID: profileID,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	repo := newMockRepoManager()
	repo.magicLinks.On("Claim", ctx, hash, mock.Anything).Return(link, nil).Once()
	repo.profiles.On("GetByID", ctx, profileID.String()).
		Return(nil, repository.NewRecordNotFound())

	auth := &MockAuthenticator{}
	exchanger := chemtrack.NewMagicLinkExchanger(repo, auth)

	_, _, err := exchanger.Exchange(ctx, chemtrack.ExchangeParams{Code: "code"})
	assert.ErrorIs(t, err, chemtrack.ErrProfileMissing)
	auth.AssertNotCalled(t, "IssueSession", mock.Anything, mock.Anything)
}

func TestMintPersistsHashedToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	profile := activeProfile(false, nil)

	repo := newMockRepoManager()
	repo.magicLinks.On("Create", ctx, mock.MatchedBy(func(link *chemtrack.MagicLink) bool {
		return link.ProfileID == profile.ID &&
			link.Type == chemtrack.MagicLinkTypeRecovery &&
			link.ExpiresAt.Equal(now.Add(time.Hour))
	})).Return(&chemtrack.MagicLink{ID: uuid.New(), ProfileID: profile.ID}, nil).Once()

	exchanger := chemtrack.NewMagicLinkExchanger(repo, &MockAuthenticator{}).
		WithClock(func() time.Time { return now })

	minted, err := exchanger.Mint(ctx, profile, chemtrack.MagicLinkTypeRecovery, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, minted.RawToken)
	assert.Contains(t, minted.URL, chemtrack.RouteSignIn+"?code=")
	repo.magicLinks.AssertExpectations(t)
}

func TestMintRejectsUnknownType(t *testing.T) {
	exchanger := chemtrack.NewMagicLinkExchanger(newMockRepoManager(), &MockAuthenticator{})

	_, err := exchanger.Mint(context.Background(), activeProfile(false, nil), chemtrack.MagicLinkType("sms"), time.Hour)
	assert.Error(t, err)
}
