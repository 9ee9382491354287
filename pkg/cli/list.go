package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg        config
		categories []string
		topics     []string
		tags       []string
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "Filter by category (repeatable)",
			Destination: &categories,
		},
		&cli.StringSliceFlag{
			Name:        "topic",
			Usage:       "Filter by metadata topic (repeatable)",
			Destination: &topics,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Usage:       "Filter by metadata tag (repeatable)",
			Destination: &tags,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List memory records visible to the caller scope",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			filter := memory.ListFilter{
				Topics: topics,
				Tags:   tags,
			}
			for _, cat := range categories {
				filter.Categories = append(filter.Categories, model.Category(cat))
			}

			for rec, err := range engine.List(ctx, cfg.scope(), filter) {
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "%s  %-8s v%-3d %s\n",
					rec.ID, rec.Category, rec.Version, rec.Content)
			}
			return nil
		},
	}
}
