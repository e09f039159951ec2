package chemtrack

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdatePasswordMessage finalizes the password-reset gate: it stores a real
// password hash and flips has_reset_password, which is what lets the
// bootstrap flow route the profile past /reset-password.
type UpdatePasswordMessage struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Password  string    `json:"password"`
}

func (e UpdatePasswordMessage) Type() string { return "profile.password.update" }

type UpdatePasswordHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewUpdatePasswordHandler(repo RepositoryManager) *UpdatePasswordHandler {
	return &UpdatePasswordHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *UpdatePasswordHandler) WithActivitySink(sink ActivitySink) *UpdatePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdatePasswordHandler) WithLogger(logger Logger) *UpdatePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	if event.ProfileID == uuid.Nil {
		return ErrProfileMissing
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if errors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Profiles().MarkPasswordResetTx(ctx, tx, event.ProfileID, hash); err != nil {
			return err
		}

		// outstanding links are dead weight once a real password exists
		if err := h.repo.MagicLinks().InvalidateForProfile(ctx, event.ProfileID); err != nil {
			h.logger.Warn("failed to invalidate links after password update: %v", err)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password update transaction failed")
	}

	h.record(ctx, event.ProfileID)

	return nil
}

func (h *UpdatePasswordHandler) record(ctx context.Context, profileID uuid.UUID) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorRef{ID: profileID.String(), Type: "user"},
		ProfileID:  profileID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password update: %v", err)
	}
}
