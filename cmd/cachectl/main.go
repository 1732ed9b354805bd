// Command cachectl inspects and resets the gateway's durable cache.
//
//	cachectl pointer
//	cachectl files [-rm <id>]
//	cachectl clear -session <id>
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"findoc-gateway/internal/bootstrap"
	"findoc-gateway/internal/shared/config"
	"findoc-gateway/internal/shared/storage/db"
)

var commands = []subcommands.Command{
	&pointerCmd{},
	&filesCmd{},
	&clearCmd{},
}

// openScopes builds the cache stack from the environment.
var openScopes = func(ctx context.Context) (*bootstrap.Scopes, error) {
	return bootstrap.BuildScopes(ctx, config.Load(), db.DefaultCLIOptions())
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
