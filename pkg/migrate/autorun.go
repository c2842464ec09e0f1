package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaybeRunDev prepares the schema on service start. SQLite is always
// bootstrapped from the models. Postgres is migrated only in dev with
// STOREFRONT_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "bootstrapping sqlite schema")
		return Bootstrap(ctx, client)
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	files, err := Files("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, files)
	if err != nil {
		return err
	}
	defer runner.Close()

	done, err := runner.Up(ctx)
	if err != nil && !IsNoChange(err) {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(done)), "dev migrations complete")
	return nil
}

// Bootstrap creates the schema from the gorm models.
func Bootstrap(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
