package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/urfave/cli/v3"
)

func getCommand() *cli.Command {
	var (
		cfg      config
		recordID model.RecordID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Record ID to show",
			Destination: (*string)(&recordID),
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "get",
		Usage: "Show a memory record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			rec, err := engine.Get(ctx, recordID, cfg.scope())
			if err != nil {
				return err
			}

			raw, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal record")
			}

			fmt.Fprintln(c.Root().Writer, string(raw))
			return nil
		},
	}
}
