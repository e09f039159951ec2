package chemtrack

// Client routes the bootstrap flow may land on. Redirect targets are always
// one of these; there is no other side channel.
const (
	RouteSignIn         = "/auth"
	RouteResetPassword  = "/reset-password"
	RouteDashboard      = "/dashboard"
	RouteAdminDashboard = "/admin/dashboard"
	RouteAdminUsers     = "/admin/users"
	RouteAdminLocations = "/admin/locations"
	RouteUserDashboard  = "/user/dashboard"
	RouteUserChemicals  = "/user/chemicals"
)

// BootstrapState is a node in the auth bootstrap state machine.
type BootstrapState string

const (
	StateUnchecked          BootstrapState = "UNCHECKED"
	StateNoSession          BootstrapState = "NO_SESSION"
	StateCheckingProfile    BootstrapState = "CHECKING_PROFILE"
	StateNeedsPasswordReset BootstrapState = "NEEDS_PASSWORD_RESET"
	StateRoleDenied         BootstrapState = "ROLE_DENIED"
	StateAuthorized         BootstrapState = "AUTHORIZED"
)

// Terminal reports whether the state ends the bootstrap sequence for the
// current navigation.
func (s BootstrapState) Terminal() bool {
	switch s {
	case StateNoSession, StateNeedsPasswordReset, StateRoleDenied, StateAuthorized:
		return true
	default:
		return false
	}
}

// Decision is the outcome of one bootstrap evaluation. It is derived fresh on
// every route entry and never cached across navigations, because role and
// status can change server-side between requests.
type Decision struct {
	State    BootstrapState
	Redirect string
	// Notice is a user-visible message; empty for silent redirects.
	Notice  string
	Profile *Profile
	Err     error
}

// Authorized reports whether the protected view may render.
func (d Decision) Authorized() bool {
	return d.State == StateAuthorized
}

// DashboardFor maps a profile to its role-appropriate dashboard.
func DashboardFor(p *Profile) string {
	if CanAdminister(p) {
		return RouteAdminDashboard
	}
	return RouteUserDashboard
}

// Decide is the bootstrap state machine: a pure function from (session,
// profile, route requirement, path) to a terminal Decision. Ordering is
// fixed: session presence, profile status, the password-reset gate, then the
// role check. An admin who has not reset their password is sent to
// reset-password, never to the admin dashboard.
//
// The caller owns the side effects (profile fetch, redirect); failures of the
// fetch itself never reach this function, they fail closed in Bootstrapper.
func Decide(sess Session, profile *Profile, requirement RouteRequirement, path string) Decision {
	if requirement == RequirementNone {
		return Decision{State: StateAuthorized, Profile: profile}
	}

	if sess == nil || sess.GetUserID() == "" {
		return Decision{
			State:    StateNoSession,
			Redirect: RouteSignIn,
			Err:      ErrNoSession,
		}
	}

	if profile == nil {
		return Decision{
			State:    StateNoSession,
			Redirect: RouteSignIn,
			Notice:   ErrProfileMissing.Message,
			Err:      ErrProfileMissing,
		}
	}

	if !profile.IsActive() {
		return Decision{
			State:    StateNoSession,
			Redirect: RouteSignIn,
			Notice:   ErrProfileInactive.Message,
			Err:      ErrProfileInactive,
		}
	}

	if !profile.HasResetPassword() && path != RouteResetPassword {
		return Decision{
			State:    StateNeedsPasswordReset,
			Redirect: RouteResetPassword,
			Profile:  profile,
		}
	}

	if !requirement.SatisfiedBy(profile) {
		// a normal authorization outcome, redirected silently
		return Decision{
			State:    StateRoleDenied,
			Redirect: DashboardFor(profile),
			Profile:  profile,
			Err:      ErrRoleDenied,
		}
	}

	return Decision{State: StateAuthorized, Profile: profile}
}
