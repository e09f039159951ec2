package chemtrack

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeleteUserMessage removes a profile. Owner profiles are never deletable;
// pending magic links go first so no orphaned link can resurrect a session.
type DeleteUserMessage struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Actor     *Profile
}

func (e DeleteUserMessage) Type() string { return "profile.delete" }

type DeleteUserHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewDeleteUserHandler(repo RepositoryManager) *DeleteUserHandler {
	return &DeleteUserHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *DeleteUserHandler) WithActivitySink(sink ActivitySink) *DeleteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DeleteUserHandler) WithLogger(logger Logger) *DeleteUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	if !CanAdminister(event.Actor) {
		return ErrRoleDenied
	}

	if event.ProfileID == uuid.Nil {
		return ErrProfileMissing
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.MagicLinks().InvalidateForProfile(ctx, event.ProfileID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate magic links")
		}

		return h.repo.Profiles().RemoveTx(ctx, tx, event.ProfileID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile deletion transaction failed")
	}

	h.record(ctx, event.Actor, event.ProfileID)

	return nil
}

func (h *DeleteUserHandler) record(ctx context.Context, actor *Profile, profileID uuid.UUID) {
	event := ActivityEvent{
		EventType:  ActivityEventProfileDeleted,
		Actor:      actorRefFor(actor),
		ProfileID:  profileID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during profile deletion: %v", err)
	}
}
