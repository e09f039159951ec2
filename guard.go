package chemtrack

import (
	"github.com/gofiber/fiber/v2"
)

// ProfileLocalsKey is where the guard stashes the resolved profile for
// downstream handlers.
const ProfileLocalsKey = "chemtrack:profile"

// RouteGuard gates routes on the bootstrap decision. Protected content is
// never rendered while the decision is pending: the guard evaluates before
// the handler runs and redirects on anything other than AUTHORIZED.
type RouteGuard struct {
	bootstrap *Bootstrapper
	cookieKey string
	logger    Logger
}

func NewRouteGuard(bootstrap *Bootstrapper, cfg Config) *RouteGuard {
	return &RouteGuard{
		bootstrap: bootstrap,
		cookieKey: cfg.GetContextKey(),
		logger:    defLogger{},
	}
}

func (g *RouteGuard) WithLogger(logger Logger) *RouteGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Protect returns a middleware enforcing the given requirement. The session
// token rides the auth cookie; the evaluation is recomputed on every request
// so role or status changes apply on the next navigation.
func (g *RouteGuard) Protect(requirement RouteRequirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(g.cookieKey)

		decision := g.bootstrap.Evaluate(c.UserContext(), token, c.Path(), requirement)
		if decision.Authorized() {
			if decision.Profile != nil {
				c.Locals(ProfileLocalsKey, decision.Profile)
			}
			return c.Next()
		}

		// only a dead session invalidates the token; the reset gate and role
		// bounces keep the user signed in
		if decision.State == StateNoSession && token != "" {
			clearCookie(c, g.cookieKey)
		}

		if decision.Notice != "" {
			SetNotice(c, decision.Notice)
		}

		redirect := decision.Redirect
		if redirect == "" {
			redirect = RouteSignIn
		}

		status := fiber.StatusSeeOther
		if c.Method() == fiber.MethodGet {
			status = fiber.StatusFound
		}

		return c.Redirect(redirect, status)
	}
}

// GuardedProfile returns the profile the guard resolved for this request.
func GuardedProfile(c *fiber.Ctx) (*Profile, bool) {
	profile, ok := c.Locals(ProfileLocalsKey).(*Profile)
	return profile, ok
}
