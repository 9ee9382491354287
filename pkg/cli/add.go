package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg      config
		category string
		content  string
		metadata string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "Record category: factual, episodic, working or semantic",
			Destination: &category,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "content",
			Usage:       "The statement to remember",
			Destination: &content,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "metadata",
			Aliases:     []string{"m"},
			Usage:       "Metadata as a JSON object (e.g. '{\"topic\":\"style\",\"confidence\":0.9}')",
			Destination: &metadata,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Store a new memory record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx, memory.WithSyncIndex())
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			var meta model.Metadata
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
					return goerr.Wrap(model.ErrInvalidInput, "metadata must be a JSON object", goerr.V("metadata", metadata))
				}
			}

			rec, err := engine.Add(ctx, memory.AddInput{
				Scope:    cfg.scope(),
				Category: model.Category(category),
				Content:  content,
				Metadata: meta,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Created record %s (version %d)\n", rec.ID, rec.Version)
			return nil
		},
	}
}
