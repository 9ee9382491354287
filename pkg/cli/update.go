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

func updateCommand() *cli.Command {
	var (
		cfg      config
		recordID model.RecordID
		version  int64
		content  string
		metadata string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Record ID to update",
			Destination: (*string)(&recordID),
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "version",
			Usage:       "The record version last read (stale versions are rejected)",
			Destination: &version,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "content",
			Usage:       "Replacement content (omit to keep)",
			Destination: &content,
		},
		&cli.StringFlag{
			Name:        "metadata",
			Aliases:     []string{"m"},
			Usage:       "Metadata keys to merge as a JSON object (null values remove a key)",
			Destination: &metadata,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, scopeFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "update",
		Usage: "Update the content or metadata of a memory record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, closer, err := cfg.newEngine(ctx, memory.WithSyncIndex())
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			input := memory.UpdateInput{Version: version}
			if content != "" {
				input.Content = &content
			}
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &input.Metadata); err != nil {
					return goerr.Wrap(model.ErrInvalidInput, "metadata must be a JSON object", goerr.V("metadata", metadata))
				}
			}

			rec, err := engine.Update(ctx, recordID, cfg.scope(), input)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Updated record %s to version %d\n", rec.ID, rec.Version)
			return nil
		},
	}
}
