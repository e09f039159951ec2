package chemtrack

import (
	"context"
	"database/sql"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RepositoryManager aggregates the auth-side repositories and exposes the
// shared transaction runner.
type RepositoryManager interface {
	Profiles() Profiles
	MagicLinks() MagicLinks
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Validate() error
	MustValidate()
}

type mngr struct {
	db         *bun.DB
	profiles   Profiles
	magicLinks MagicLinks
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		profiles:   NewProfilesRepository(db),
		magicLinks: NewMagicLinksRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager needs a database handle", errors.CategoryInternal)
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized", errors.CategoryInternal)
	}

	if m.magicLinks == nil {
		return errors.New("repository magicLinks should be initialized", errors.CategoryInternal)
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

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) MagicLinks() MagicLinks {
	return m.magicLinks
}
