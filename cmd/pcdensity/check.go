package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/wgdzlh/pcdensity"
	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/internal/config"
	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/publish"
	"github.com/wgdzlh/pcdensity/report"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const logTag = "Pcdensity:"

const checkExample = `  pcdensity density-check -p survey.las -g survey_dtm.tif -o ./qa
  pcdensity density-check -p survey.las -g survey_dtm.tif --minimum-count 3 --minimum-count-percentage 90`

func newCheckCmd(a *app) *cobra.Command {
	var pointFile, gridFile string
	cmd := &cobra.Command{
		Use:     "density-check",
		Short:   "Run the algorithm independent density check",
		Example: checkExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDensityCheck(cmd.Context(), cmd.OutOrStdout(), a.cfg, pointFile, gridFile)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&pointFile, "point-file", "p", "", "point cloud file (LAS, or LAZ/TileDB with the pdal backend)")
	fs.StringVarP(&gridFile, "grid-file", "g", "", "reference grid (GeoTIFF) whose cells define the density grid")
	fs.Int("minimum-count", 5, "minimum soundings per cell")
	fs.Float64("minimum-count-percentage", 95, "percentage of cells required to reach the minimum count")
	fs.Bool("plot", false, "save a histogram plot into the output directory")
	fs.String("document", "", "write a result document into the output directory (yaml, json)")
	fs.String("metrics-textfile", "", "write the result as a node exporter textfile")
	_ = cmd.MarkFlagRequired("point-file")
	_ = cmd.MarkFlagRequired("grid-file")
	a.bind(cmd, map[string]string{
		"check.minimum_count":            "minimum-count",
		"check.minimum_count_percentage": "minimum-count-percentage",
		"output.plot":                    "plot",
		"output.document":                "document",
		"metrics.textfile":               "metrics-textfile",
	}, false)
	return cmd
}

func runDensityCheck(ctx context.Context, w io.Writer, cfg *config.Config, pointFile, gridFile string) (err error) {
	tk := pcdensity.NewGdalToolbox(cfg.TempDir)
	opts := baseOptions(cfg, tk)
	opts.PointCloud = pointFile
	opts.Reference = gridFile

	res, err := density.NewCheck(opts).Run(ctx)
	if err != nil {
		return
	}
	if err = report.Summary(w, res); err != nil {
		return
	}
	files, err := writeExtras(cfg, res, time.Now())
	if err != nil {
		return
	}
	if cfg.Publish.Endpoint != "" {
		err = publishArtifacts(ctx, cfg.Publish, res, files)
	}
	return
}

// 输出可选成果：结果文档、直方图与指标；返回需要上传的文件
func writeExtras(cfg *config.Config, res *density.CheckResult, now time.Time) (files []string, err error) {
	dir := res.Artifacts.Dir
	if dir != "" && res.PersistErr == nil {
		files = append(files, res.Artifacts.Density, res.Artifacts.Regions)
	}
	var plotFile string
	if cfg.Output.Plot && dir != "" {
		plotFile = filepath.Join(dir, report.PlotFileName)
		if e := report.SaveHistogramPlot(plotFile, res.Histogram, res.Params.MinimumCount); e != nil {
			log.Warn(logTag+"save histogram plot failed", zap.String("file", plotFile), zap.Error(e))
			plotFile = ""
		} else {
			files = append(files, plotFile)
		}
	}
	if format := cfg.Output.Document; format != "" && dir != "" {
		doc := report.NewDocument(res, now)
		if doc.Artifacts != nil {
			doc.Artifacts.Plot = plotFile
		}
		docFile := filepath.Join(dir, report.DocumentFileName(format))
		if err = doc.Write(docFile, format); err != nil {
			err = fmt.Errorf("write result document: %w", err)
			return
		}
		files = append(files, docFile)
	}
	if cfg.Metrics.Textfile != "" {
		if err = report.WriteMetrics(cfg.Metrics.Textfile, res); err != nil {
			err = fmt.Errorf("write metrics: %w", err)
			return
		}
	}
	return
}

func publishArtifacts(ctx context.Context, pc config.PublishConfig, res *density.CheckResult, files []string) (err error) {
	if len(files) == 0 {
		log.Warn(logTag+"nothing to publish", zap.String("pointCloud", res.PointCloud))
		return
	}
	up, err := publish.NewUploader(publish.Options{
		Endpoint:  pc.Endpoint,
		AccessKey: pc.AccessKey,
		SecretKey: pc.SecretKey,
		Bucket:    pc.Bucket,
		Region:    pc.Region,
		Prefix:    pc.Prefix,
		UseSSL:    pc.UseSSL,
	})
	if err != nil {
		return
	}
	runID := uuid.NewString()
	objects, err := up.Upload(ctx, runID, files...)
	if err != nil {
		return
	}
	log.Info(logTag+"artifacts published", zap.String("runID", runID), zap.Strings("objects", objects))
	return
}
