package main

import (
	"fmt"

	"github.com/wgdzlh/pcdensity/internal/config"
	"github.com/wgdzlh/pcdensity/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 命令共享的配置
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	cmd := &cobra.Command{
		Use:           "pcdensity",
		Short:         "Point cloud density quality check",
		Long:          "pcdensity counts the soundings of a point cloud in each cell of a reference grid\nand checks that enough cells reach the minimum sounding count.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			if a.cfg, err = config.Load(a.v, a.cfgFile); err != nil {
				return
			}
			if err = log.Init(a.cfg.Log.Level, a.cfg.Log.JSON); err != nil {
				err = fmt.Errorf("init log: %w", err)
			}
			return
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			log.Sync()
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("temp-dir", "", "root of the per-run scratch directories (default: system temp dir)")
	pf.String("backend", config.BackendNative, "rasterization backend (native, pdal)")
	pf.String("source-crs", "", "CRS of the point cloud, overrides the CRS stored in the file")
	pf.StringP("output-directory", "o", "", "directory for the density raster and low-density regions")
	pf.String("vector-format", "gpkg", "low-density regions format (gpkg, shp, geojson)")
	a.bind(cmd, map[string]string{
		"log.level":            "log-level",
		"log.json":             "log-json",
		"temp_dir":             "temp-dir",
		"backend.kind":         "backend",
		"backend.source_crs":   "source-crs",
		"output.dir":           "output-directory",
		"output.vector_format": "vector-format",
	}, true)

	cmd.AddCommand(newCheckCmd(a), newQajsonCmd(a))
	return cmd
}

// 将命令行参数绑定到配置项，仅显式设置的参数覆盖配置文件
func (a *app) bind(cmd *cobra.Command, keys map[string]string, persistent bool) {
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
