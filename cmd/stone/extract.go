package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/quay/zlog"
	"github.com/urfave/cli/v2"

	"github.com/serpent-os/go-stone"
)

var extractCmd = &cli.Command{
	Name:      "extract",
	Usage:     "unpack the content payload and verify every index range",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the unpacked content blob to `FILE`",
			Value:   "content.bin",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("extract: exactly one archive expected")
		}
		return extract(c, c.Args().First(), c.String("output"))
	},
}

// Extract walks the archive once, remembering the index records, then writes
// the whole content blob out in one forward pass, checking the payload
// checksum, and afterwards verifies every index range against its digest.
func extract(c *cli.Context, name, out string) error {
	ctx := c.Context
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	r, _, err := stone.ReadFile(ctx, f)
	if err != nil {
		return err
	}
	defer r.Close()

	// Index payloads precede the content payload, which is last by
	// convention; collect the records on the way.
	var index []stone.IndexRecord
	for {
		p, err := r.NextPayload(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("extract: archive has no content payload")
		case err != nil:
			return err
		}
		if p.Header().Kind == stone.KindIndex {
			for rec, err := range p.Indexes(ctx) {
				if err != nil {
					return err
				}
				index = append(index, rec)
			}
			continue
		}
		if p.Header().Kind != stone.KindContent {
			continue
		}

		dst, err := os.Create(out)
		if err != nil {
			return err
		}
		defer dst.Close()
		content, err := r.OpenContent(p)
		if err != nil {
			return err
		}
		defer content.Close()
		if err := content.Unpack(ctx, dst); err != nil {
			return fmt.Errorf("extract: content blob: %w", err)
		}
		for _, rec := range index {
			if err := content.Extract(rec, io.Discard); err != nil {
				return fmt.Errorf("extract: range [%d,%d): %w", rec.Start, rec.End, err)
			}
		}
		zlog.Info(ctx).
			Int("ranges", len(index)).
			Str("output", out).
			Msg("extracted and verified content")
		return dst.Close()
	}
}
