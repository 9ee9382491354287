package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func rebuildCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "rebuild",
		Usage: "Rebuild the similarity index from the record store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			count, err := engine.Rebuild(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Rebuilt index with %d records\n", count)
			return nil
		},
	}
}
