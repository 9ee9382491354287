package cli

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the memory engine as MCP tools over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			server, err := mcp.New(engine, cfg.scope())
			if err != nil {
				return err
			}

			return server.Run(ctx)
		},
	}
}
