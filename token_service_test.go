package chemtrack_test

import (
	"testing"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(expirationHours int) chemtrack.TokenService {
	return chemtrack.NewTokenService(
		[]byte("test-signing-key"),
		expirationHours,
		"chemtrack-test",
		[]string{"chemtrack-test"},
		nil,
	)
}

func TestTokenServiceRoundTrip(t *testing.T) {
	ts := newTestTokenService(1)
	profile := activeProfile(true, boolPtr(true))

	token, err := ts.Generate(profile)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, profile.ID.String(), claims.UserID())
	assert.Equal(t, profile.Email, claims.Email())
	assert.Equal(t, chemtrack.RoleAdmin, claims.Role())
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	ts := newTestTokenService(-1)
	profile := activeProfile(false, boolPtr(true))

	token, err := ts.Generate(profile)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, chemtrack.ErrTokenExpired)
}

func TestTokenServiceRejectsForeignSignature(t *testing.T) {
	ts := newTestTokenService(1)
	other := chemtrack.NewTokenService([]byte("different-key"), 1, "chemtrack-test", []string{"chemtrack-test"}, nil)

	profile := activeProfile(false, boolPtr(true))
	token, err := other.Generate(profile)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	ts := newTestTokenService(1)

	_, err := ts.Validate("not-a-token")
	assert.Error(t, err)
}

func TestGenerateRequiresProfile(t *testing.T) {
	ts := newTestTokenService(1)

	_, err := ts.Generate(nil)
	assert.Error(t, err)
}
