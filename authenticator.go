package chemtrack

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// MaxLoginAttempts is the maximum number of attempts a profile gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// Auther is the credential store: it verifies passwords, issues session
// tokens, and rebuilds sessions from presented tokens.
type Auther struct {
	profiles     Profiles
	tokenService TokenService
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(profiles Profiles, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		profiles:     profiles,
		tokenService: tokenService,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service (useful for tests).
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the password for the identified profile and returns a
// signed session token.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	profile, err := s.verifyCredentials(ctx, identifier, password)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	token, err := s.tokenService.Generate(profile)
	if err != nil {
		s.logger.Error("Login token generation error: %v", err)
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: profile.ID.String(), Type: "user"}, profile.ID.String(), map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

// IssueSession signs a session token for an already verified profile. The
// magic-link exchange uses this after claiming a one-time code.
func (s *Auther) IssueSession(ctx context.Context, profile *Profile) (string, error) {
	if profile == nil {
		return "", ErrProfileMissing
	}
	if !profile.IsActive() {
		return "", ErrProfileInactive
	}
	return s.tokenService.Generate(profile)
}

// SessionFromToken validates a presented token and rebuilds the session.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) verifyCredentials(ctx context.Context, identifier, password string) (*Profile, error) {
	profile, err := s.profiles.GetByEmail(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve profile during verification")
	}

	if !profile.IsActive() {
		return nil, ErrProfileInactive
	}

	if profile.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*profile.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}
		if expired {
			profile.LoginAttempts = 0
		}
	}

	if profile.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, profile.PasswordHash); err != nil {
		if err2 := s.profiles.TrackAttemptedLogin(ctx, profile); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrMismatchedHashAndPassword
	}

	if err := s.profiles.TrackSuccessfulLogin(ctx, profile); err != nil {
		s.logger.Error("failed to track successful login: %v", err)
	}

	return profile, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, profileID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		ProfileID: profileID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
