package commands

import (
	"bytes"
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type CreateCmd struct {
	Input string `arg:"" help:"JSON file with a product or an array of products, - for stdin" default:"-"`
}

func (c *CreateCmd) Run(ctx context.Context, globals *Globals) error {
	data, err := globals.readInput(c.Input)
	if err != nil {
		return err
	}

	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	// an array is created as one batch
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return rt.Run(ctx, "bulk-create", func(ctx context.Context, tenant string) error {
			var inputs []models.ProductInput
			if err := strictUnmarshal(data, &inputs); err != nil {
				return invalidInput(err)
			}
			products, err := rt.Engine.BulkCreate(ctx, tenant, inputs, rt.Options.Actor)
			if err != nil {
				return err
			}
			return globals.printJSON(products)
		})
	}

	return rt.Run(ctx, "create", func(ctx context.Context, tenant string) error {
		var input models.ProductInput
		if err := strictUnmarshal(data, &input); err != nil {
			return invalidInput(err)
		}
		product, err := rt.Engine.Create(ctx, tenant, input, rt.Options.Actor)
		if err != nil {
			return err
		}
		return globals.printJSON(product)
	})
}

type LocateCmd struct {
	ID uuid.UUID `arg:"" help:"product id"`
}

// located is the printed form of a located product.
type located struct {
	Representation string          `json:"representation"`
	MemberID       *uuid.UUID      `json:"memberId,omitempty"`
	MemberEmail    string          `json:"memberEmail,omitempty"`
	Product        *models.Product `json:"product"`
}

func (c *LocateCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "locate", func(ctx context.Context, tenant string) error {
		loc, err := rt.Engine.Locate(ctx, tenant, c.ID)
		if err != nil {
			return err
		}
		return globals.printJSON(newLocated(loc))
	})
}

func newLocated(loc *store.Located) located {
	out := located{Representation: "standalone", Product: loc.Product}
	if loc.Placement.IsEmbedded() {
		out.Representation = "embedded"
		id := loc.Placement.MemberID
		out.MemberID = &id
		if loc.Owner != nil {
			out.MemberEmail = loc.Owner.Email
		}
	}
	return out
}

type UpdateCmd struct {
	ID    uuid.UUID `arg:"" help:"product id"`
	Input string    `arg:"" help:"JSON file with the fields to change, null clears a field, - for stdin" default:"-"`
}

func (c *UpdateCmd) Run(ctx context.Context, globals *Globals) error {
	var changes models.ProductChanges
	if err := globals.decodeInput(c.Input, &changes); err != nil {
		return publicError(err)
	}

	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "update", func(ctx context.Context, tenant string) error {
		product, err := rt.Engine.Update(ctx, tenant, c.ID, changes, rt.Options.Actor)
		if err != nil {
			return err
		}
		return globals.printJSON(product)
	})
}

type ReassignCmd struct {
	ID       uuid.UUID `arg:"" help:"product id"`
	Assignee string    `help:"email of the new assignee, none to unassign" optional:""`
	Location string    `help:"new location (Employee, Our office, FP warehouse)" optional:""`
}

func (c *ReassignCmd) Run(ctx context.Context, globals *Globals) error {
	var changes models.ProductChanges
	if c.Assignee != "" {
		assignee := c.Assignee
		changes.AssignedEmail = &assignee
	}
	if c.Location != "" {
		location := models.Location(strings.TrimSpace(c.Location))
		changes.Location = &location
	}

	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "reassign", func(ctx context.Context, tenant string) error {
		product, err := rt.Engine.Reassign(ctx, tenant, c.ID, changes, rt.Options.Actor)
		if err != nil {
			return err
		}
		return globals.printJSON(product)
	})
}

type ReleaseCmd struct {
	ID uuid.UUID `arg:"" help:"product id"`
}

func (c *ReleaseCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "release", func(ctx context.Context, tenant string) error {
		product, err := rt.Engine.ReleaseShipment(ctx, tenant, c.ID, rt.Options.Actor)
		if err != nil {
			return err
		}
		return globals.printJSON(product)
	})
}

type DeleteCmd struct {
	ID uuid.UUID `arg:"" help:"product id"`
}

func (c *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "delete", func(ctx context.Context, tenant string) error {
		return rt.Engine.SoftDelete(ctx, tenant, c.ID, rt.Options.Actor)
	})
}

type CheckSerialCmd struct {
	Serial  string    `arg:"" help:"serial number to check"`
	Exclude uuid.UUID `help:"product being updated, its own serial is not a conflict" optional:""`
}

// serialAvailability is the printed form of a successful serial check.
type serialAvailability struct {
	SerialNumber string `json:"serialNumber"`
	Available    bool   `json:"available"`
}

func (c *CheckSerialCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "check-serial", func(ctx context.Context, tenant string) error {
		if err := rt.Engine.Guard().CheckUnique(ctx, tenant, c.Serial, c.Exclude); err != nil {
			return err
		}
		return globals.printJSON(serialAvailability{SerialNumber: strings.TrimSpace(c.Serial), Available: true})
	})
}
