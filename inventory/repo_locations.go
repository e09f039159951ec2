package inventory

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrLocationCycle is returned when a reparent would make a location its own
// ancestor.
var ErrLocationCycle = goerrors.New("location cannot be its own ancestor", goerrors.CategoryValidation).
	WithTextCode("LOCATION_CYCLE")

type Locations interface {
	repository.Repository[*Location]

	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*Location, error)
	ListRoots(ctx context.Context) ([]*Location, error)
	Reparent(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*Location, error)
}

type locations struct {
	repository.Repository[*Location]
	db *bun.DB
}

var _ Locations = (*locations)(nil)

func NewLocationsRepository(db *bun.DB) Locations {
	repo := repository.NewRepository[*Location](db, repository.ModelHandlers[*Location]{
		NewRecord: func() *Location { return &Location{} },
		GetID: func(l *Location) uuid.UUID {
			if l == nil {
				return uuid.Nil
			}
			return l.ID
		},
		SetID: func(l *Location, id uuid.UUID) {
			if l != nil {
				l.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &locations{
		Repository: repo,
		db:         db,
	}
}

func (a *locations) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*Location, error) {
	var records []*Location
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.parent_id = ?", parentID).
		Where("?TableAlias.deleted_at IS NULL").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *locations) ListRoots(ctx context.Context) ([]*Location, error) {
	var records []*Location
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.parent_id IS NULL").
		Where("?TableAlias.deleted_at IS NULL").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Reparent moves a location under a new parent after walking the would-be
// ancestor chain to guarantee the tree stays acyclic.
func (a *locations) Reparent(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*Location, error) {
	record, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if newParentID != nil {
		if err := a.checkCycle(ctx, id, *newParentID); err != nil {
			return nil, err
		}
	}

	_, err = a.db.NewUpdate().
		Model((*Location)(nil)).
		Set("parent_id = ?", newParentID).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	record.ParentID = newParentID
	return record, nil
}

func (a *locations) checkCycle(ctx context.Context, id, candidate uuid.UUID) error {
	cursor := candidate
	for i := 0; i < 64; i++ {
		if cursor == id {
			return ErrLocationCycle.WithMetadata(map[string]any{
				"id":     id.String(),
				"parent": candidate.String(),
			})
		}

		parent, err := a.Repository.GetByID(ctx, cursor.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return repository.NewRecordNotFound().
					WithMetadata(map[string]any{"parent": cursor.String()})
			}
			return err
		}

		if parent.ParentID == nil {
			return nil
		}
		cursor = *parent.ParentID
	}

	// a chain this deep means the tree is already corrupted
	return ErrLocationCycle.WithMetadata(map[string]any{"id": id.String()})
}
