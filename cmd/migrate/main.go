package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (defaults to the embedded set; create uses "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("-name is required for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.Create(dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return nil
	case "validate":
		files, err := migrate.Files(opts.dir)
		if err != nil {
			return err
		}
		if err := migrate.Check(files); err != nil {
			return err
		}
		logg.Info(ctx, "migrations valid")
		return nil
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}

	if cfg.DB.IsSQLite() {
		return errors.New("goose migrations target postgres; sqlite schemas are bootstrapped by the services")
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	files, err := migrate.Files(opts.dir)
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, files)
	if err != nil {
		return err
	}
	defer runner.Close()

	if opts.cmd == "status" {
		states, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range states {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"version": st.Version,
				"source":  st.Source,
				"applied": st.Applied,
			}), "migration")
		}
		return nil
	}

	var done []migrate.Applied
	switch opts.cmd {
	case "up":
		done, err = runner.Up(ctx)
	case "down":
		done, err = runner.Down(ctx)
	case "version":
		if opts.version == "" {
			return errors.New("-version is required for version")
		}
		done, err = runner.To(ctx, opts.version)
	}
	for _, m := range done {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     m.Version,
			"source":      m.Source,
			"duration_ms": m.DurationMS,
		}), "migration applied")
	}
	if err != nil && !migrate.IsNoChange(err) {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(done)), "migrate complete")
	return nil
}
