package inventory

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RiskAssessments interface {
	repository.Repository[*RiskAssessment]

	ListByStatus(ctx context.Context, status AssessmentStatus) ([]*RiskAssessment, error)
	ListByChemical(ctx context.Context, chemicalID uuid.UUID) ([]*RiskAssessment, error)
	UpdateStatus(ctx context.Context, assessment *RiskAssessment) (*RiskAssessment, error)
}

type riskAssessments struct {
	repository.Repository[*RiskAssessment]
	db *bun.DB
}

var _ RiskAssessments = (*riskAssessments)(nil)

func NewRiskAssessmentsRepository(db *bun.DB) RiskAssessments {
	repo := repository.NewRepository[*RiskAssessment](db, repository.ModelHandlers[*RiskAssessment]{
		NewRecord: func() *RiskAssessment { return &RiskAssessment{} },
		GetID: func(r *RiskAssessment) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *RiskAssessment, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "title"
		},
	})

	return &riskAssessments{
		Repository: repo,
		db:         db,
	}
}

func (a *riskAssessments) ListByStatus(ctx context.Context, status AssessmentStatus) ([]*RiskAssessment, error) {
	var records []*RiskAssessment
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", status).
		Where("?TableAlias.deleted_at IS NULL").
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *riskAssessments) ListByChemical(ctx context.Context, chemicalID uuid.UUID) ([]*RiskAssessment, error) {
	var records []*RiskAssessment
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.chemical_id = ?", chemicalID).
		Where("?TableAlias.deleted_at IS NULL").
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// UpdateStatus persists the workflow fields only: status, reviewer, and the
// submitted/reviewed timestamps. Title and summary edits go through Update.
func (a *riskAssessments) UpdateStatus(ctx context.Context, assessment *RiskAssessment) (*RiskAssessment, error) {
	if assessment == nil {
		return nil, repository.NewRecordNotFound()
	}

	_, err := a.db.NewUpdate().
		Model(assessment).
		Column("status", "reviewer_id", "submitted_at", "reviewed_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return assessment, nil
}
