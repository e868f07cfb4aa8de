package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "config.yaml", "path to config file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&listCmd{}, "")
	commander.Register(&fetchCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
