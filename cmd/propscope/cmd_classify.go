package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/propscope/internal/core/model"
)

func newCmdClassify(e *env) *cobra.Command {
	var lat, lon float64
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify the property type at a point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := model.Coordinate{Lat: lat, Lon: lon}
			if err := c.Validate(); err != nil {
				return err
			}
			ts, err := buildTiles(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer ts.Close()

			res := ts.classifier(e.cfg, e.log).Classify(cmd.Context(), c.Lon, c.Lat)
			out, err := json.Marshal(map[string]any{"allowed": res.Allowed, "type": res.Type})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.out, string(out))
			return err
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
