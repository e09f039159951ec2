package chemtrack

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// DefaultProfileFetchTimeout bounds the profile lookup so a hung backend
// degrades to ProfileFetchError instead of an indefinitely stuck guard.
var DefaultProfileFetchTimeout = 5 * time.Second

// Bootstrapper evaluates the auth bootstrap sequence for one navigation:
// session check, profile fetch, then the pure Decide state machine. State is
// recomputed from scratch on every call; nothing is memoized, so server-side
// role and status edits take effect on the next request.
type Bootstrapper struct {
	auth         Authenticator
	profiles     ProfileFinder
	fetchTimeout time.Duration
	logger       Logger
}

// NewBootstrapper returns a Bootstrapper wired to the credential store and
// profile repository.
func NewBootstrapper(auth Authenticator, profiles ProfileFinder, cfg Config) *Bootstrapper {
	timeout := DefaultProfileFetchTimeout
	if cfg != nil && cfg.GetProfileFetchTimeout() > 0 {
		timeout = cfg.GetProfileFetchTimeout()
	}

	return &Bootstrapper{
		auth:         auth,
		profiles:     profiles,
		fetchTimeout: timeout,
		logger:       defLogger{},
	}
}

func (b *Bootstrapper) WithLogger(logger Logger) *Bootstrapper {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Evaluate runs the bootstrap state machine for a presented token against the
// route's declared requirement. Every failure path yields a terminal
// Decision with a redirect; the caller never has to handle a dangling state.
func (b *Bootstrapper) Evaluate(ctx context.Context, token, path string, requirement RouteRequirement) Decision {
	if requirement == RequirementNone {
		return Decision{State: StateAuthorized}
	}

	if token == "" {
		return Decision{State: StateNoSession, Redirect: RouteSignIn, Err: ErrNoSession}
	}

	sess, err := b.auth.SessionFromToken(token)
	if err != nil {
		// expired or undecodable tokens are the same as no session
		b.logger.Debug("bootstrap token rejected: %v", err)
		return Decision{State: StateNoSession, Redirect: RouteSignIn, Err: ErrNoSession}
	}

	profile, err := b.fetchProfile(ctx, sess.GetUserID())
	if err != nil {
		if errors.Is(err, ErrProfileMissing) {
			return Decision{
				State:    StateNoSession,
				Redirect: RouteSignIn,
				Notice:   ErrProfileMissing.Message,
				Err:      ErrProfileMissing,
			}
		}
		// lookup error or timeout: fail closed, surface a notice
		b.logger.Error("bootstrap profile fetch failed for %s: %v", sess.GetUserID(), err)
		return Decision{
			State:    StateNoSession,
			Redirect: RouteSignIn,
			Notice:   ErrProfileFetch.Message,
			Err:      ErrProfileFetch,
		}
	}

	return Decide(sess, profile, requirement, path)
}

// fetchProfile performs the bounded fetch-by-id. A canceled parent context
// (the navigation moved on) returns the context error so stale results are
// discarded rather than applied to the new route's decision.
func (b *Bootstrapper) fetchProfile(ctx context.Context, id string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
	defer cancel()

	profile, err := b.profiles.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrProfileMissing
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "profile lookup failed")
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "profile lookup interrupted")
	}

	return profile, nil
}
