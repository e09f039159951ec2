package chemtrack

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// ProvisionUserMessage creates a profile for an invited person. The profile
// starts with a random unusable password and the reset gate engaged, and a
// recovery link is minted and delivered so their first sign-in lands on
// reset-password.
type ProvisionUserMessage struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	PhoneRegion string `json:"phone_region"`
	IsAdmin     bool   `json:"is_admin"`
	Actor       *Profile
}

func (e ProvisionUserMessage) Type() string { return "profile.provision" }

type ProvisionUserHandler struct {
	repo     RepositoryManager
	links    *MagicLinkExchanger
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func NewProvisionUserHandler(repo RepositoryManager, links *MagicLinkExchanger) *ProvisionUserHandler {
	return &ProvisionUserHandler{
		repo:     repo,
		links:    links,
		notifier: logNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ProvisionUserHandler) WithNotifier(n Notifier) *ProvisionUserHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

func (h *ProvisionUserHandler) WithActivitySink(sink ActivitySink) *ProvisionUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ProvisionUserHandler) WithLogger(logger Logger) *ProvisionUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ProvisionUserHandler) Execute(ctx context.Context, event ProvisionUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionUserHandler) execute(ctx context.Context, event ProvisionUserMessage) error {
	if !CanAdminister(event.Actor) {
		return ErrRoleDenied
	}

	email := strings.ToLower(strings.TrimSpace(event.Email))
	if email == "" {
		return ErrNoEmptyString
	}

	profile := &Profile{
		Email:    email,
		FullName: event.FullName,
		IsAdmin:  event.IsAdmin,
		Status:   ProfileStatusActive,
	}

	if event.Phone != "" {
		phone, err := normalizePhone(event.Phone, event.PhoneRegion)
		if err != nil {
			return err
		}
		profile.Phone = phone
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// profile ids derive from the email so re-invites are idempotent
		if id, err := hashid.NewUUID(email); err == nil {
			profile.ID = id
		}

		// random hash so the row is never password-signable before reset
		profile.PasswordHash = RandomPasswordHash()

		created, err := h.repo.Profiles().ProvisionTx(ctx, tx, profile)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not provision profile")
		}
		profile = created

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "provisioning transaction failed")
	}

	minted, err := h.links.Mint(ctx, profile, MagicLinkTypeRecovery, DefaultMagicLinkTTL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not mint invite link")
	}

	if err := h.notifier.Notify(ctx, Notification{
		To:      profile.Email,
		Subject: "You have been invited to ChemTrack",
		Body:    "Use the link below to sign in and set your password.",
		Link:    minted.URL,
	}); err != nil {
		// the profile exists either way, the invite can be re-sent
		h.logger.Error("failed to deliver invite notification: %v", err)
	}

	h.recordProvisioned(ctx, event.Actor, profile)

	return nil
}

func (h *ProvisionUserHandler) recordProvisioned(ctx context.Context, actor *Profile, profile *Profile) {
	event := ActivityEvent{
		EventType:  ActivityEventProfileProvisioned,
		Actor:      actorRefFor(actor),
		ProfileID:  profile.ID.String(),
		Metadata:   map[string]any{"email": profile.Email, "is_admin": profile.IsAdmin},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during provisioning: %v", err)
	}
}

func actorRefFor(p *Profile) ActorRef {
	if p == nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: p.ID.String(), Type: "user"}
}

func normalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = "US"
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"phone": raw})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
