package chemtrack

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var MarkPasswordResetSQL = `UPDATE "profiles" AS "prf"
SET
	"password_hash" = ?,
	"has_reset_password" = TRUE
WHERE
	"prf"."deleted_at" IS NULL
AND (
	"prf"."id" = ?
) RETURNING *;`

type Profiles interface {
	repository.Repository[*Profile]

	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Profile, error)

	ListAll(ctx context.Context) ([]*Profile, error)

	TrackAttemptedLogin(ctx context.Context, profile *Profile) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, profile *Profile) error
	TrackSuccessfulLogin(ctx context.Context, profile *Profile) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, profile *Profile) error

	Provision(ctx context.Context, record *Profile) (*Profile, error)
	ProvisionTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error)

	MarkPasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error
	MarkPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) (*Profile, error)
	SetStatus(ctx context.Context, id uuid.UUID, status ProfileStatus) (*Profile, error)

	Remove(ctx context.Context, id uuid.UUID) error
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
	_ ProfileFinder                   = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *profiles) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

// ListAll returns every non deleted profile ordered by email. The admin
// users screen is the only consumer; no pagination yet.
func (a *profiles) ListAll(ctx context.Context) ([]*Profile, error) {
	var records []*Profile
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.deleted_at IS NULL").
		Order("email ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Provision creates a profile with defaults applied: active status, member
// role flags, and the reset gate engaged (has_reset_password unset).
func (a *profiles) Provision(ctx context.Context, record *Profile) (*Profile, error) {
	return a.ProvisionTx(ctx, a.db, record)
}

func (a *profiles) ProvisionTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error) {
	prepareProfileDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *profiles) MarkPasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.MarkPasswordResetTx(ctx, a.db, id, passwordHash)
}

func (a *profiles) MarkPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, MarkPasswordResetSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *profiles) TrackSuccessfulLogin(ctx context.Context, profile *Profile) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, profile)
}

func (a *profiles) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, profile *Profile) error {
	// NOTE: the ORM update path won't null out login_attempt_at, so raw SQL.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "profiles" AS "prf"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("prf".id = ?)
			AND "prf"."deleted_at" IS NULL;
	`, loggedInAt, profile.ID).Exec(ctx)

	return err
}

func (a *profiles) TrackAttemptedLogin(ctx context.Context, profile *Profile) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, profile)
}

func (a *profiles) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, profile *Profile) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(profile.ID.String()),
	}

	record := &Profile{}
	record.ID = profile.ID
	record.LoginAttempts = profile.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)

	return err
}

// SetAdmin toggles the admin flag. Owner profiles are immutable through
// every role-check path.
func (a *profiles) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) (*Profile, error) {
	target, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if err := ensureProfileMutable(target); err != nil {
		return nil, err
	}

	_, err = a.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("is_admin = ?", isAdmin).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	target.IsAdmin = isAdmin
	return target, nil
}

// SetStatus flips a profile between active and inactive.
func (a *profiles) SetStatus(ctx context.Context, id uuid.UUID, status ProfileStatus) (*Profile, error) {
	if status != ProfileStatusActive && status != ProfileStatusInactive {
		return nil, goerrors.New("unknown profile status", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"status": status})
	}

	target, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if err := ensureProfileMutable(target); err != nil {
		return nil, err
	}

	_, err = a.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	target.Status = status
	return target, nil
}

// Remove soft deletes a profile. Owners are never deletable.
func (a *profiles) Remove(ctx context.Context, id uuid.UUID) error {
	return a.RemoveTx(ctx, a.db, id)
}

func (a *profiles) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	target, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return err
	}

	if err := ensureProfileMutable(target); err != nil {
		return err
	}

	_, err = tx.NewUpdate().
		Model((*Profile)(nil)).
		Set("deleted_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)

	return err
}

// ensureProfileMutable is the single gate every write path crosses before
// touching a profile row. Owner profiles never pass it.
func ensureProfileMutable(target *Profile) error {
	if target != nil && target.IsOwner {
		return ErrOwnerImmutable.WithMetadata(map[string]any{"id": target.ID.String()})
	}
	return nil
}

func prepareProfileDefaults(record *Profile) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
