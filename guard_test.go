package chemtrack_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func guardedApp(t *testing.T, auth *MockAuthenticator, finder *MockProfileFinder) (*fiber.App, *bool) {
	t.Helper()

	bootstrap := chemtrack.NewBootstrapper(auth, finder, mockConfig{})
	guard := chemtrack.NewRouteGuard(bootstrap, mockConfig{})

	handlerRan := false
	app := fiber.New()
	app.Get(chemtrack.RouteAdminUsers, guard.Protect(chemtrack.RequirementAdminOnly), func(c *fiber.Ctx) error {
		handlerRan = true
		profile, ok := chemtrack.GuardedProfile(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"email": profile.Email})
	})
	app.Get(chemtrack.RouteUserDashboard, guard.Protect(chemtrack.RequirementAuthenticated), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	return app, &handlerRan
}

func TestGuardRedirectsAnonymousWithoutRunningHandler(t *testing.T) {
	app, handlerRan := guardedApp(t, &MockAuthenticator{}, &MockProfileFinder{})

	req := httptest.NewRequest(fiber.MethodGet, chemtrack.RouteAdminUsers, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, chemtrack.RouteSignIn, resp.Header.Get(fiber.HeaderLocation))
	assert.False(t, *handlerRan, "protected handler must not run for an anonymous request")
}

func TestGuardRedirectsNonAdminToTheirDashboard(t *testing.T) {
	profile := activeProfile(false, boolPtr(true))
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "member-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).Return(profile, nil)

	app, handlerRan := guardedApp(t, auth, finder)

	req := httptest.NewRequest(fiber.MethodGet, chemtrack.RouteAdminUsers, nil)
	req.AddCookie(&http.Cookie{Name: "chemtrack_session", Value: "member-token"})
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, chemtrack.RouteUserDashboard, resp.Header.Get(fiber.HeaderLocation))
	assert.False(t, *handlerRan)

	// a role bounce is not a sign-out; the session cookie stays untouched
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, "chemtrack_session", c.Name)
	}
}

func TestGuardAllowsAdminThrough(t *testing.T) {
	profile := activeProfile(true, boolPtr(true))
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "admin-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).Return(profile, nil)

	app, handlerRan := guardedApp(t, auth, finder)

	req := httptest.NewRequest(fiber.MethodGet, chemtrack.RouteAdminUsers, nil)
	req.AddCookie(&http.Cookie{Name: "chemtrack_session", Value: "admin-token"})
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, *handlerRan)
}

func TestGuardSendsUnresetProfileToResetPassword(t *testing.T) {
	profile := activeProfile(true, nil)
	sess := testSession{userID: profile.ID.String()}

	auth := &MockAuthenticator{}
	auth.On("SessionFromToken", "fresh-token").Return(chemtrack.Session(sess), nil)

	finder := &MockProfileFinder{}
	finder.On("GetByID", mock.Anything, profile.ID.String()).Return(profile, nil)

	app, _ := guardedApp(t, auth, finder)

	req := httptest.NewRequest(fiber.MethodGet, chemtrack.RouteUserDashboard, nil)
	req.AddCookie(&http.Cookie{Name: "chemtrack_session", Value: "fresh-token"})
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, chemtrack.RouteResetPassword, resp.Header.Get(fiber.HeaderLocation))
}
