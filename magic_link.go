package chemtrack

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// DefaultMagicLinkTTL is how long a minted link stays exchangeable.
var DefaultMagicLinkTTL = 24 * time.Hour

// ExchangeParams are the URL parameters the magic-link landing recognizes.
// A link carries either a raw one-time code, a raw token, or a pre-hashed
// token, plus a type discriminator.
type ExchangeParams struct {
	Code      string
	Token     string
	TokenHash string
	Type      MagicLinkType
	Email     string
	Temp      bool
}

// Empty reports whether the URL carried no exchangeable credential at all.
// The landing treats this as a plain sign-in visit, not a failure.
func (p ExchangeParams) Empty() bool {
	return p.Code == "" && p.Token == "" && p.TokenHash == ""
}

// hash resolves the parameter set to the stored token hash.
func (p ExchangeParams) hash() string {
	switch {
	case p.TokenHash != "":
		return p.TokenHash
	case p.Token != "":
		return HashLinkToken(p.Token)
	case p.Code != "":
		return HashLinkToken(p.Code)
	default:
		return ""
	}
}

// HashLinkToken maps a raw one-time code to its stored form. Raw codes are
// never persisted.
func HashLinkToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewLinkToken returns a fresh raw one-time code.
func NewLinkToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate link token")
	}
	return hex.EncodeToString(buf), nil
}

// MintedLink is the result of minting: the persisted record plus the raw
// code that goes into the emailed URL.
type MintedLink struct {
	Link     *MagicLink
	RawToken string
	URL      string
}

// MagicLinkExchanger converts one-time codes into live sessions. Claiming is
// atomic: a given code exchanges at most once, and a second attempt surfaces
// the expired/invalid failure rather than a stale success.
type MagicLinkExchanger struct {
	repo     RepositoryManager
	auth     Authenticator
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewMagicLinkExchanger builds an exchanger with sane defaults.
func NewMagicLinkExchanger(repo RepositoryManager, auth Authenticator) *MagicLinkExchanger {
	return &MagicLinkExchanger{
		repo:     repo,
		auth:     auth,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit exchange events.
func (e *MagicLinkExchanger) WithActivitySink(sink ActivitySink) *MagicLinkExchanger {
	e.activity = normalizeActivitySink(sink)
	return e
}

// WithLogger overrides the logger.
func (e *MagicLinkExchanger) WithLogger(logger Logger) *MagicLinkExchanger {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithClock injects a custom clock (useful for tests).
func (e *MagicLinkExchanger) WithClock(clock func() time.Time) *MagicLinkExchanger {
	if clock != nil {
		e.now = clock
	}
	return e
}

// Mint creates a one-time link for the profile and returns the raw code.
func (e *MagicLinkExchanger) Mint(ctx context.Context, profile *Profile, linkType MagicLinkType, ttl time.Duration) (*MintedLink, error) {
	if profile == nil {
		return nil, ErrProfileMissing
	}
	if linkType != MagicLinkTypeSignIn && linkType != MagicLinkTypeRecovery {
		return nil, errors.New("unknown magic link type", errors.CategoryBadInput).
			WithMetadata(map[string]any{"type": linkType})
	}
	if ttl <= 0 {
		ttl = DefaultMagicLinkTTL
	}

	raw, err := NewLinkToken()
	if err != nil {
		return nil, err
	}

	link := &MagicLink{
		ID:        uuid.New(),
		TokenHash: HashLinkToken(raw),
		Type:      linkType,
		ProfileID: profile.ID,
		Email:     profile.Email,
		ExpiresAt: e.now().Add(ttl),
	}

	created, err := e.repo.MagicLinks().Create(ctx, link)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist magic link")
	}

	e.record(ctx, ActivityEventLinkMinted, profile.ID.String(), map[string]any{
		"link_id": created.ID.String(),
		"type":    linkType,
	})

	return &MintedLink{
		Link:     created,
		RawToken: raw,
		URL:      RouteSignIn + "?code=" + raw + "&type=" + linkType,
	}, nil
}

// Exchange claims the one-time code and returns a session token plus the
// linked profile. Error taxonomy: ErrExchangeFailed for unknown, expired, or
// reused codes; ErrProfileMissing when the identity authenticated but has no
// profile row.
func (e *MagicLinkExchanger) Exchange(ctx context.Context, params ExchangeParams) (string, *Profile, error) {
	hash := params.hash()
	if hash == "" {
		return "", nil, ErrNoSession
	}

	link, err := e.repo.MagicLinks().Claim(ctx, hash, e.now())
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, ErrExchangeFailed) {
			e.record(ctx, ActivityEventLinkRejected, "", map[string]any{
				"reason": "invalid, expired, or already used",
			})
			return "", nil, ErrExchangeFailed
		}
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "failed to claim magic link")
	}

	profile, err := e.repo.Profiles().GetByID(ctx, link.ProfileID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// authenticated but unprofiled: never rendered as authorized
			e.record(ctx, ActivityEventLinkRejected, link.ProfileID.String(), map[string]any{
				"reason": "profile missing after exchange",
			})
			return "", nil, ErrProfileMissing
		}
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "failed to load profile after exchange")
	}

	token, err := e.auth.IssueSession(ctx, profile)
	if err != nil {
		return "", nil, err
	}

	e.record(ctx, ActivityEventLinkExchanged, profile.ID.String(), map[string]any{
		"link_id": link.ID.String(),
		"type":    link.Type,
	})

	return token, profile, nil
}

func (e *MagicLinkExchanger) record(ctx context.Context, eventType ActivityEventType, profileID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "system"},
		ProfileID:  profileID,
		Metadata:   metadata,
		OccurredAt: e.now(),
	}

	if err := normalizeActivitySink(e.activity).Record(ctx, event); err != nil {
		e.logger.Warn("activity sink error during link exchange: %v", err)
	}
}
