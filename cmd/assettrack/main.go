package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/assettrack/cmd/assettrack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool `help:"Enable development mode (debug logging, console output)." env:"ASSETTRACK_DEV"`
		Version kong.VersionFlag

		Options commands.Options `embed:""`

		Migrate     commands.MigrateCmd     `cmd:"" help:"Provision and migrate tenant stores"`
		Create      commands.CreateCmd      `cmd:"" help:"Create one or many products from JSON"`
		Locate      commands.LocateCmd      `cmd:"" help:"Find a product and the representation holding it"`
		Update      commands.UpdateCmd      `cmd:"" help:"Apply a JSON patch to a product"`
		Reassign    commands.ReassignCmd    `cmd:"" help:"Assign a product to a member or move it to storage"`
		Release     commands.ReleaseCmd     `cmd:"" help:"Release the shipment pin of a product"`
		Delete      commands.DeleteCmd      `cmd:"" help:"Soft delete a product"`
		CheckSerial commands.CheckSerialCmd `cmd:"" name:"check-serial" help:"Check that a serial number is free before creating or updating a product"`
		Member      commands.MemberCmd      `cmd:"" help:"Manage members"`
		Audit       commands.AuditCmd       `cmd:"" help:"List audit records, newest first"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("assettrack"),
		kong.Description("Multi-tenant asset tracker"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Dev: cli.Dev, Version: version, Options: &cli.Options})
	cmd.FatalIfErrorf(err)
}
