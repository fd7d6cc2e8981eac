package commands

import (
	"context"

	"github.com/rs/zerolog"
)

type MigrateCmd struct {
	Tenants []string `arg:"" help:"tenants to provision"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	for _, name := range c.Tenants {
		err := rt.RunFor(ctx, name, "migrate", func(ctx context.Context, tenant string) error {
			if rt.migrator == nil {
				zerolog.Ctx(ctx).Info().Msg("In-memory stores need no migrations")
				return nil
			}
			return rt.migrator.Migrate(ctx, tenant)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
