package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := RootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, "propscope:", err)
		os.Exit(1)
	}
}
