// Command fxctl is the operator console for the settlement engine. It reads the
// same database as the API and mints operator tokens.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&tokenCmd{}, "auth")
	commander.Register(&balanceCmd{}, "ledger")
	commander.Register(&debtsCmd{}, "ledger")
	commander.Register(&costBasisCmd{}, "reports")
	commander.Register(&pnlCmd{}, "reports")
	commander.Register(&summaryCmd{}, "reports")
	commander.Register(&traceCmd{}, "settlement")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
