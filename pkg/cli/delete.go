package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/urfave/cli/v3"
)

func deleteCommand() *cli.Command {
	var (
		cfg      config
		recordID model.RecordID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Record ID to delete",
			Destination: (*string)(&recordID),
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a memory record (its history is retained)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			if err := engine.Delete(ctx, recordID, cfg.scope()); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Deleted record %s\n", recordID)
			return nil
		},
	}
}
