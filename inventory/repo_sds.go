package inventory

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SDSRevisions interface {
	repository.Repository[*SDSRevision]

	Latest(ctx context.Context, chemicalID uuid.UUID) (*SDSRevision, error)
	History(ctx context.Context, chemicalID uuid.UUID) ([]*SDSRevision, error)
	NextVersion(ctx context.Context, chemicalID uuid.UUID) (int, error)
}

type sdsRevisions struct {
	repository.Repository[*SDSRevision]
	db *bun.DB
}

var _ SDSRevisions = (*sdsRevisions)(nil)

func NewSDSRevisionsRepository(db *bun.DB) SDSRevisions {
	repo := repository.NewRepository[*SDSRevision](db, repository.ModelHandlers[*SDSRevision]{
		NewRecord: func() *SDSRevision { return &SDSRevision{} },
		GetID: func(s *SDSRevision) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *SDSRevision, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "blob_key"
		},
	})

	return &sdsRevisions{
		Repository: repo,
		db:         db,
	}
}

func (a *sdsRevisions) Latest(ctx context.Context, chemicalID uuid.UUID) (*SDSRevision, error) {
	record := &SDSRevision{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.chemical_id = ?", chemicalID).
		Order("version DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"chemical_id": chemicalID.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *sdsRevisions) History(ctx context.Context, chemicalID uuid.UUID) ([]*SDSRevision, error) {
	var records []*SDSRevision
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.chemical_id = ?", chemicalID).
		Order("version DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// NextVersion returns 1 + the highest stored version. Revisions are never
// edited or deleted, only superseded.
func (a *sdsRevisions) NextVersion(ctx context.Context, chemicalID uuid.UUID) (int, error) {
	latest, err := a.Latest(ctx, chemicalID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return 1, nil
		}
		return 0, err
	}

	return latest.Version + 1, nil
}
