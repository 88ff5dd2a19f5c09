package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCmdVersion(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// no config or logger needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(out, Version)
			return err
		},
	}
}
