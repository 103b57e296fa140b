package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mrlokans/locallibrary/internal/cli"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := cli.NewRootCommand(Version, Commit).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
