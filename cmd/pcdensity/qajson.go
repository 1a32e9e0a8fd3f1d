package main

import (
	"fmt"

	"github.com/wgdzlh/pcdensity"
	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/qajson"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newQajsonCmd(a *app) *cobra.Command {
	var (
		input     string
		output    string
		mapLayers bool
	)
	cmd := &cobra.Command{
		Use:   "qajson",
		Short: "Run the density checks listed in a QA JSON document and write back their outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			root, err := qajson.Load(input)
			if err != nil {
				return fmt.Errorf("read qajson %s: %w", input, err)
			}
			tk := pcdensity.NewGdalToolbox(a.cfg.TempDir)
			var mapFn qajson.MapFunc
			if mapLayers {
				mapFn = mapFunc(tk)
			}
			n, err := qajson.NewAdapter(baseOptions(a.cfg, tk), mapFn).Process(cmd.Context(), root)
			if err != nil {
				return
			}
			if output == "" {
				output = input
			}
			if err = root.Save(output); err != nil {
				return fmt.Errorf("write qajson %s: %w", output, err)
			}
			log.Info(logTag+"qajson updated", zap.String("file", output), zap.Int("checks", n))
			return
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&input, "input", "i", "", "QA JSON document")
	fs.StringVar(&output, "save", "", "write the updated document here instead of overwriting the input")
	fs.BoolVar(&mapLayers, "map-layers", false, "add low-density regions and grid extents to the outputs as GeoJSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
