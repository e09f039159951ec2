package chemtrack_test

import (
	"context"
	"testing"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProvisionUserRequiresAdminActor(t *testing.T) {
	repo := newMockRepoManager()
	exchanger := chemtrack.NewMagicLinkExchanger(repo, &MockAuthenticator{})
	handler := chemtrack.NewProvisionUserHandler(repo, exchanger)

	err := handler.Execute(context.Background(), chemtrack.ProvisionUserMessage{
		Email: "newcomer@example.com",
		Actor: activeProfile(false, boolPtr(true)),
	})
	assert.ErrorIs(t, err, chemtrack.ErrRoleDenied)
	repo.profiles.AssertNotCalled(t, "ProvisionTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionUserCreatesProfileAndInviteLink(t *testing.T) {
	repo := newMockRepoManager()

	created := &chemtrack.Profile{
		ID:     uuid.New(),
		Email:  "newcomer@example.com",
		Status: chemtrack.ProfileStatusActive,
	}

	var provisioned *chemtrack.Profile
	repo.profiles.On("ProvisionTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *chemtrack.Profile) bool {
		return p.Email == "newcomer@example.com" && p.PasswordHash != "" && !p.HasResetPassword()
	})).Run(func(args mock.Arguments) {
		provisioned = args.Get(2).(*chemtrack.Profile)
	}).Return(created, nil).Once()

	repo.magicLinks.On("Create", mock.Anything, mock.MatchedBy(func(l *chemtrack.MagicLink) bool {
		return l.Type == chemtrack.MagicLinkTypeRecovery
	})).Return(&chemtrack.MagicLink{ID: uuid.New()}, nil).Once()

	exchanger := chemtrack.NewMagicLinkExchanger(repo, &MockAuthenticator{})
	sink := &capturingSink{}
	handler := chemtrack.NewProvisionUserHandler(repo, exchanger).WithActivitySink(sink)

	err := handler.Execute(context.Background(), chemtrack.ProvisionUserMessage{
		Email: "Newcomer@Example.com",
		Actor: activeProfile(true, boolPtr(true)),
	})
	require.NoError(t, err)
	require.NotNil(t, provisioned)
	assert.Equal(t, "newcomer@example.com", provisioned.Email)

	repo.profiles.AssertExpectations(t)
	repo.magicLinks.AssertExpectations(t)
}

func TestUpdatePasswordFinalizesResetGate(t *testing.T) {
	repo := newMockRepoManager()
	profileID := uuid.New()

	repo.profiles.On("MarkPasswordResetTx", mock.Anything, mock.Anything, profileID, mock.MatchedBy(func(hash string) bool {
		return chemtrack.ComparePasswordAndHash("a brand new password", hash) == nil
	})).Return(nil).Once()
	repo.magicLinks.On("InvalidateForProfile", mock.Anything, profileID).Return(nil).Once()

	sink := &capturingSink{}
	handler := chemtrack.NewUpdatePasswordHandler(repo).WithActivitySink(sink)

	err := handler.Execute(context.Background(), chemtrack.UpdatePasswordMessage{
		ProfileID: profileID,
		Password:  "a brand new password",
	})
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, chemtrack.ActivityEventPasswordReset, sink.events[0].EventType)
	repo.profiles.AssertExpectations(t)
}

func TestUpdatePasswordRejectsEmptyPassword(t *testing.T) {
	repo := newMockRepoManager()
	handler := chemtrack.NewUpdatePasswordHandler(repo)

	err := handler.Execute(context.Background(), chemtrack.UpdatePasswordMessage{
		ProfileID: uuid.New(),
		Password:  "",
	})
	assert.Error(t, err)
}

func TestDeleteUserBlocksNonAdmins(t *testing.T) {
	repo := newMockRepoManager()
	handler := chemtrack.NewDeleteUserHandler(repo)

	err := handler.Execute(context.Background(), chemtrack.DeleteUserMessage{
		ProfileID: uuid.New(),
		Actor:     activeProfile(false, boolPtr(true)),
	})
	assert.ErrorIs(t, err, chemtrack.ErrRoleDenied)
}

func TestDeleteUserRefusesOwnerProfiles(t *testing.T) {
	repo := newMockRepoManager()
	ownerID := uuid.New()

	repo.magicLinks.On("InvalidateForProfile", mock.Anything, ownerID).Return(nil).Once()
	repo.profiles.On("RemoveTx", mock.Anything, mock.Anything, ownerID).
		Return(chemtrack.ErrOwnerImmutable).Once()

	handler := chemtrack.NewDeleteUserHandler(repo)

	err := handler.Execute(context.Background(), chemtrack.DeleteUserMessage{
		ProfileID: ownerID,
		Actor:     activeProfile(true, boolPtr(true)),
	})
	assert.ErrorIs(t, err, chemtrack.ErrOwnerImmutable)
	repo.profiles.AssertExpectations(t)
}

func TestDeleteUserInvalidatesLinksFirst(t *testing.T) {
	repo := newMockRepoManager()
	profileID := uuid.New()

	repo.magicLinks.On("InvalidateForProfile", mock.Anything, profileID).Return(nil).Once()
	repo.profiles.On("RemoveTx", mock.Anything, mock.Anything, profileID).Return(nil).Once()

	handler := chemtrack.NewDeleteUserHandler(repo)

	err := handler.Execute(context.Background(), chemtrack.DeleteUserMessage{
		ProfileID: profileID,
		Actor:     activeProfile(true, boolPtr(true)),
	})
	require.NoError(t, err)
	repo.profiles.AssertExpectations(t)
	repo.magicLinks.AssertExpectations(t)
}
