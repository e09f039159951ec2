package chemtrack

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ClaimMagicLinkSQL marks a link consumed if, and only if, it is still
// unconsumed and unexpired. The conditional update is what makes the
// exchange single-use: two racing requests cannot both match the
// consumed_at IS NULL predicate.
var ClaimMagicLinkSQL = `UPDATE "magic_links" AS "mgl"
SET
	"consumed_at" = ?
WHERE
	"mgl"."token_hash" = ?
AND "mgl"."consumed_at" IS NULL
AND "mgl"."expires_at" > ?
RETURNING *;`

type MagicLinks interface {
	repository.Repository[*MagicLink]

	GetByTokenHash(ctx context.Context, hash string) (*MagicLink, error)

	Claim(ctx context.Context, hash string, now time.Time) (*MagicLink, error)
	ClaimTx(ctx context.Context, tx bun.IDB, hash string, now time.Time) (*MagicLink, error)

	InvalidateForProfile(ctx context.Context, profileID uuid.UUID) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type magicLinks struct {
	repository.Repository[*MagicLink]
	db *bun.DB
}

var (
	_ MagicLinks                        = (*magicLinks)(nil)
	_ repository.Repository[*MagicLink] = (*magicLinks)(nil)
)

func NewMagicLinksRepository(db *bun.DB) MagicLinks {
	repo := repository.NewRepository[*MagicLink](db, repository.ModelHandlers[*MagicLink]{
		NewRecord: func() *MagicLink { return &MagicLink{} },
		GetID: func(m *MagicLink) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *MagicLink, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &magicLinks{
		Repository: repo,
		db:         db,
	}
}

func (a *magicLinks) GetByTokenHash(ctx context.Context, hash string) (*MagicLink, error) {
	record := &MagicLink{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *magicLinks) Claim(ctx context.Context, hash string, now time.Time) (*MagicLink, error) {
	return a.ClaimTx(ctx, a.db, hash, now)
}

func (a *magicLinks) ClaimTx(ctx context.Context, tx bun.IDB, hash string, now time.Time) (*MagicLink, error) {
	res, err := a.Repository.RawTx(ctx, tx, ClaimMagicLinkSQL, now, hash, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		// unknown, expired, or already claimed: all collapse to not found
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

// InvalidateForProfile consumes every outstanding link for a profile. The
// exchange flow runs this for the signed-in account before honoring a link
// that belongs to a different one.
func (a *magicLinks) InvalidateForProfile(ctx context.Context, profileID uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Model((*MagicLink)(nil)).
		Set("consumed_at = ?", time.Now()).
		Where("profile_id = ?", profileID).
		Where("consumed_at IS NULL").
		Exec(ctx)

	return err
}

// PurgeExpired deletes links whose window has passed. Consumed rows are kept
// for the audit trail.
func (a *magicLinks) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.NewDelete().
		Model((*MagicLink)(nil)).
		Where("expires_at <= ?", now).
		Where("consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
