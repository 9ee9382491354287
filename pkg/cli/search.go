package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg   config
		query string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Natural language query describing what to recall",
			Destination: &query,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of records to return",
			Value:       memory.DefaultSearchLimit,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "search",
		Usage: "Search memories by semantic similarity",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			hits, err := engine.Search(ctx, memory.SearchInput{
				Scope: cfg.scope(),
				Query: query,
				Limit: int(limit),
			})
			if err != nil {
				return err
			}

			for _, hit := range hits {
				fmt.Fprintf(c.Root().Writer, "%.3f  %-8s %s  %s\n",
					hit.Provenance.Score, hit.Provenance.Category, hit.Record.ID, hit.Record.Content)
			}
			return nil
		},
	}
}
