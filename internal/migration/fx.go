package migration

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type migrateParam struct {
	fx.In

	Log *zap.Logger
	DB  *gorm.DB `optional:"true"`
}

// Module migrates the output schema on start when a database is configured.
var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, p migrateParam) {
		if p.DB == nil {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				state, err := Migrate(ctx, p.DB)
				if err != nil {
					return err
				}
				p.Log.Named("migration").Info("schema ready",
					zap.Uint("version", state.Version),
					zap.String("checksum", state.Checksum),
				)
				return nil
			},
		})
	}),
)
