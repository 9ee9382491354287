package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg      config
		recordID model.RecordID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Record ID to show history for",
			Destination: (*string)(&recordID),
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show the full mutation history of a memory record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			entries, err := engine.History(ctx, recordID, cfg.scope())
			if err != nil {
				return err
			}

			for _, entry := range entries {
				fmt.Fprintf(c.Root().Writer, "v%-4d %-8s %s\n",
					entry.Version, entry.Operation, entry.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
