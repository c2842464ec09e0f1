package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migration files are written.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Applied is one migration that ran, logged by the caller.
type Applied struct {
	Version  int64
	Source   string
	DurationMS int64
}

// Status is the state of one migration file against the database.
type Status struct {
	Version int64
	Source  string
	Applied bool
}

// Runner applies the Postgres migrations. SQLite schemas come from Bootstrap.
type Runner struct {
	provider *goose.Provider
}

// Files returns the migrations compiled into the binary, or the files under dir
// when dir is set.
func Files(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "migrations")
}

func NewRunner(db *sql.DB, files fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if files == nil {
		return nil, fmt.Errorf("migration files are required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, files)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]Applied, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return applied(results), fmt.Errorf("goose up: %w", err)
	}
	return applied(results), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) ([]Applied, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return applied([]*goose.MigrationResult{result}), nil
}

// To moves the schema up or down to version, given as YYYYMMDDHHMMSS.
func (r *Runner) To(ctx context.Context, version string) ([]Applied, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target <= 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return applied(results), fmt.Errorf("migrate to %d: %w", target, err)
	}
	return applied(results), nil
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	states, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(states))
	for _, st := range states {
		out = append(out, Status{
			Version: st.Source.Version,
			Source:  st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return out, nil
}

func (r *Runner) Close() error {
	return r.provider.Close()
}

func applied(results []*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		out = append(out, Applied{
			Version:  res.Source.Version,
			Source:   res.Source.Path,
			DurationMS: res.Duration.Milliseconds(),
		})
	}
	return out
}

// IsNoChange reports goose's "nothing to do" outcomes, which the CLI treats as success.
func IsNoChange(err error) bool {
	return errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrations)
}
