package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
)

type MemberCmd struct {
	Create  MemberCreateCmd  `cmd:"" help:"Create a member from JSON"`
	Get     MemberGetCmd     `cmd:"" help:"Show a member with the products it holds"`
	Address MemberAddressCmd `cmd:"" help:"Replace the address of a member"`
	Delete  MemberDeleteCmd  `cmd:"" help:"Soft delete a member and release its products"`
}

type MemberCreateCmd struct {
	Input string `arg:"" help:"JSON file with the member, - for stdin" default:"-"`
}

func (c *MemberCreateCmd) Run(ctx context.Context, globals *Globals) error {
	var input models.MemberInput
	if err := globals.decodeInput(c.Input, &input); err != nil {
		return publicError(err)
	}

	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "member-create", func(ctx context.Context, tenant string) error {
		member, err := rt.Engine.CreateMember(ctx, tenant, input, rt.Options.Actor)
		if err != nil {
			return err
		}
		return globals.printJSON(member)
	})
}

type MemberGetCmd struct {
	ID uuid.UUID `arg:"" help:"member id"`
}

func (c *MemberGetCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "member-get", func(ctx context.Context, tenant string) error {
		member, err := rt.Engine.GetMember(ctx, tenant, c.ID)
		if err != nil {
			return err
		}
		return globals.printJSON(member)
	})
}

type MemberAddressCmd struct {
	ID    uuid.UUID `arg:"" help:"member id"`
	Input string    `arg:"" help:"JSON file with the address, - for stdin" default:"-"`
}

func (c *MemberAddressCmd) Run(ctx context.Context, globals *Globals) error {
	var addr models.Address
	if err := globals.decodeInput(c.Input, &addr); err != nil {
		return publicError(err)
	}

	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "member-address", func(ctx context.Context, tenant string) error {
		member, err := rt.Engine.UpdateMemberAddress(ctx, tenant, c.ID, addr, rt.Options.Actor)
		if err != nil {
			return err
		}
		return globals.printJSON(member)
	})
}

type MemberDeleteCmd struct {
	ID uuid.UUID `arg:"" help:"member id"`
}

func (c *MemberDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.Open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return rt.Run(ctx, "member-delete", func(ctx context.Context, tenant string) error {
		return rt.Engine.DeleteMember(ctx, tenant, c.ID, rt.Options.Actor)
	})
}
