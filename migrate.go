package chemtrack

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ApplyMigrations executes every .sql file in the embedded migrations
// directory in lexical order. Files use IF NOT EXISTS guards so the runner
// is idempotent across restarts.
func ApplyMigrations(ctx context.Context, db *bun.DB, logger Logger) error {
	if logger == nil {
		logger = defLogger{}
	}

	sub, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open migrations")
	}

	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migrations")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := fs.ReadFile(sub, name)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migration").
				WithMetadata(map[string]any{"file": name})
		}

		logger.Info("applying migration %s", name)

		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "migration failed").
				WithMetadata(map[string]any{"file": name})
		}
	}

	return nil
}
