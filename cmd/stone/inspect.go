package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/serpent-os/go-stone"
)

var inspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "walk an archive and print every payload and record",
	ArgsUsage: "FILE...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return errors.New("inspect: no archives named")
		}
		for _, name := range c.Args().Slice() {
			if err := inspect(c, name); err != nil {
				return err
			}
		}
		return nil
	},
}

func inspect(c *cli.Context, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	ctx := c.Context
	r, _, err := stone.ReadFile(ctx, f)
	if err != nil {
		return err
	}
	defer r.Close()

	hdr, err := r.HeaderV1()
	if err != nil {
		return err
	}
	fmt.Printf("%s:\n", name)
	fmt.Printf("header v1: payloads=%d file_type=%v\n", hdr.NumPayloads, hdr.FileType)

	for {
		p, err := r.NextPayload(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		h := p.Header()
		fmt.Printf("payload: kind=%v compression=%v stored=%d plain=%d records=%d version=%d\n",
			h.Kind, h.Compression, h.StoredSize, h.PlainSize, h.NumRecords, h.Version)
		if err := inspectRecords(c, r, p); err != nil {
			return err
		}
	}
}

func inspectRecords(c *cli.Context, r *stone.Reader, p *stone.Payload) error {
	ctx := c.Context
	switch p.Header().Kind {
	case stone.KindLayout:
		for rec, err := range p.Layouts(ctx) {
			if err != nil {
				return err
			}
			switch rec.FileType {
			case stone.FileRegular:
				fmt.Printf("  layout: %v uid=%d gid=%d mode=%o hash=%s name=%s\n",
					rec.FileType, rec.UID, rec.GID, rec.Mode, hex.EncodeToString(rec.Hash), rec.Target)
			case stone.FileSymlink:
				fmt.Printf("  layout: %v uid=%d gid=%d mode=%o source=%s target=%s\n",
					rec.FileType, rec.UID, rec.GID, rec.Mode, rec.Source, rec.Target)
			default:
				fmt.Printf("  layout: %v uid=%d gid=%d mode=%o path=%s\n",
					rec.FileType, rec.UID, rec.GID, rec.Mode, rec.Target)
			}
		}
	case stone.KindMeta:
		for rec, err := range p.Metas(ctx) {
			if err != nil {
				return err
			}
			switch v := rec.Value.(type) {
			case []byte:
				fmt.Printf("  meta: %v = %s\n", rec.Tag, v)
			default:
				fmt.Printf("  meta: %v = %v\n", rec.Tag, v)
			}
		}
	case stone.KindIndex:
		for rec, err := range p.Indexes(ctx) {
			if err != nil {
				return err
			}
			fmt.Printf("  index: [%d,%d) digest=%s\n",
				rec.Start, rec.End, hex.EncodeToString(rec.Digest[:]))
		}
	case stone.KindAttributes:
		for rec, err := range p.Attributes(ctx) {
			if err != nil {
				return err
			}
			fmt.Printf("  attribute: %q = %q\n", rec.Key, rec.Value)
		}
	case stone.KindContent:
		// Nothing to print; extraction is the extract command's job.
	}
	return nil
}
