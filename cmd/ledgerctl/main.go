package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

var commands cli.Commands

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&commands,
		kong.Name("ledgerctl"),
		kong.Description("Operator tooling for the odyssey ledger."),
		kong.UsageOnError(),
		kong.Bind(&commands.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	cfg, err := app.LoadConfig()
	kctx.FatalIfErrorf(err)

	err = kctx.Run(&cli.Env{Config: cfg, Logger: app.NewLogger(cfg)})
	kctx.FatalIfErrorf(err)
}
