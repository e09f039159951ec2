package inventory

import (
	"context"
	"database/sql"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Manager aggregates the inventory repositories and exposes the shared
// transaction runner.
type Manager interface {
	Chemicals() Chemicals
	Categories() Categories
	Locations() Locations
	SDSRevisions() SDSRevisions
	RiskAssessments() RiskAssessments
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Validate() error
	MustValidate()
}

type mngr struct {
	db          *bun.DB
	chemicals   Chemicals
	categories  Categories
	locations   Locations
	sds         SDSRevisions
	assessments RiskAssessments
}

func NewManager(db *bun.DB) Manager {
	return &mngr{
		db:          db,
		chemicals:   NewChemicalsRepository(db),
		categories:  NewCategoriesRepository(db),
		locations:   NewLocationsRepository(db),
		sds:         NewSDSRevisionsRepository(db),
		assessments: NewRiskAssessmentsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return goerrors.New("inventory manager needs a database handle", goerrors.CategoryInternal)
	}

	if m.chemicals == nil || m.categories == nil || m.locations == nil ||
		m.sds == nil || m.assessments == nil {
		return goerrors.New("inventory repositories should be initialized", goerrors.CategoryInternal)
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Chemicals() Chemicals {
	return m.chemicals
}

func (m mngr) Categories() Categories {
	return m.categories
}

func (m mngr) Locations() Locations {
	return m.locations
}

func (m mngr) SDSRevisions() SDSRevisions {
	return m.sds
}

func (m mngr) RiskAssessments() RiskAssessments {
	return m.assessments
}
