package commands

import (
	"context"

	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type AuditCmd struct {
	Kind   string `help:"item kind to filter by (asset, member, office, team)" default:"" enum:",asset,member,office,team"`
	Action string `help:"action to filter by (create, bulk-create, update, reassign, delete)" default:"" enum:",create,bulk-create,update,reassign,delete"`
	Limit  int    `help:"maximum number of records" default:"20"`
}

func (c *AuditCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "audit", func(ctx context.Context, tenant string) error {
		records, err := rt.Engine.Audit().List(ctx, tenant, store.AuditFilter{
			ItemKind: models.ItemKind(c.Kind),
			Action:   models.AuditAction(c.Action),
			Limit:    c.Limit,
		})
		if err != nil {
			return err
		}
		return globals.printJSON(records)
	})
}
