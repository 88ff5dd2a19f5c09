package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCmdRefreshManifest(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-manifest <propertyType>",
		Short: "Point a manifest's subgroups at the tile sources declared by the style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer p.Close(context.WithoutCancel(cmd.Context()))

			res, err := p.service.RefreshManifest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(e.out, "%s: %d subgroup(s) rewritten\n", res.Manifest.PropertyType, res.Rewritten)
			return err
		},
	}
}
