// Command stone inspects and extracts stone package archives.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "inspect and extract stone package archives",
		Commands: []*cli.Command{
			inspectCmd,
			extractCmd,
		},
	}
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "stone: %v\n", err)
		os.Exit(1)
	}
}
