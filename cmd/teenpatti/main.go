package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/lox/teenpatti/internal/custody"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the Teen Patti server"`
	Eval    EvalCmd          `cmd:"" help:"Rank three card hands against each other"`
	Odds    OddsCmd          `cmd:"" help:"Estimate win rates with Monte Carlo sampling"`
	Payout  PayoutCmd        `cmd:"" help:"Preview a proportional custody settlement"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("teenpatti"),
		kong.Description("Multiplayer Teen Patti server with on-chain custody settlement"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version":  version,
			"rake_bps": fmt.Sprint(custody.DefaultRakeBps),
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
