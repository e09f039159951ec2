package inventory

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Chemicals interface {
	repository.Repository[*Chemical]

	GetByCAS(ctx context.Context, casNumber string) (*Chemical, error)
	ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*Chemical, error)
	ListAll(ctx context.Context) ([]*Chemical, error)
	ListLowStock(ctx context.Context) ([]*Chemical, error)
	ListExpiring(ctx context.Context, by time.Time) ([]*Chemical, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type chemicals struct {
	repository.Repository[*Chemical]
	db *bun.DB
}

var _ Chemicals = (*chemicals)(nil)

func NewChemicalsRepository(db *bun.DB) Chemicals {
	repo := repository.NewRepository[*Chemical](db, repository.ModelHandlers[*Chemical]{
		NewRecord: func() *Chemical { return &Chemical{} },
		GetID: func(c *Chemical) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Chemical, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "cas_number"
		},
	})

	return &chemicals{
		Repository: repo,
		db:         db,
	}
}

func (a *chemicals) GetByCAS(ctx context.Context, casNumber string) (*Chemical, error) {
	record := &Chemical{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.cas_number = ?", casNumber).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"cas_number": casNumber})
		}
		return nil, err
	}

	return record, nil
}

func (a *chemicals) ListByLocation(ctx context.Context, locationID uuid.UUID) ([]*Chemical, error) {
	var records []*Chemical
	err := a.db.NewSelect().
		Model(&records).
		Relation("Category").
		Where("?TableAlias.location_id = ?", locationID).
		Where("?TableAlias.deleted_at IS NULL").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListLowStock returns stock-tracked chemicals at or below their reorder
// level. A reorder level of zero opts the chemical out.
func (a *chemicals) ListLowStock(ctx context.Context) ([]*Chemical, error) {
	var records []*Chemical
	err := a.db.NewSelect().
		Model(&records).
		Relation("Location").
		Where("?TableAlias.reorder_level > 0").
		Where("?TableAlias.quantity <= ?TableAlias.reorder_level").
		Where("?TableAlias.deleted_at IS NULL").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListExpiring returns chemicals whose expiry falls on or before the given
// instant. Rows without an expiry never show up.
func (a *chemicals) ListExpiring(ctx context.Context, by time.Time) ([]*Chemical, error) {
	var records []*Chemical
	err := a.db.NewSelect().
		Model(&records).
		Relation("Location").
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at <= ?", by).
		Where("?TableAlias.deleted_at IS NULL").
		Order("expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Remove soft deletes a chemical. Revision history stays behind for audits.
func (a *chemicals) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Model((*Chemical)(nil)).
		Set("deleted_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)

	return err
}

func (a *chemicals) ListAll(ctx context.Context) ([]*Chemical, error) {
	var records []*Chemical
	err := a.db.NewSelect().
		Model(&records).
		Relation("Category").
		Relation("Location").
		Where("?TableAlias.deleted_at IS NULL").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}
