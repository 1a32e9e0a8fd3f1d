package pdal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"

	"go.uber.org/zap"
)

const (
	DefaultCommand = "pdal"
	PipelineName   = "pipeline.json"
	maxOutputLog   = 2048
)

var ErrPipeline = errors.New("pdal pipeline failed")

type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// 通过pdal命令行执行管线生成计数栅格
type Rasterizer struct {
	Toolkit   density.Toolkit
	Command   string
	SourceCRS string
	Stream    bool
	Run       RunFunc
}

func (r *Rasterizer) Rasterize(ctx context.Context, pointCloud string, spec density.GridSpec, scratchDir string) (counts density.CountRaster, err error) {
	const tag = "PdalRasterizer:"
	out := filepath.Join(scratchDir, density.ScratchCountName)
	p, err := NewPipeline(pointCloud, r.SourceCRS, spec, out)
	if err != nil {
		return
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	pf := filepath.Join(scratchDir, PipelineName)
	if err = os.WriteFile(pf, body, 0o644); err != nil {
		return
	}
	name := r.Command
	if name == "" {
		name = DefaultCommand
	}
	args := []string{"pipeline"}
	if r.Stream {
		args = append(args, "--stream")
	}
	args = append(args, pf)
	run := r.Run
	if run == nil {
		run = execRun
	}
	log.Info(tag+"run pipeline", zap.String("cmd", name), zap.Strings("args", args), zap.String("pointCloud", pointCloud))
	start := time.Now()
	output, err := run(ctx, name, args...)
	if err != nil {
		if len(output) > maxOutputLog {
			output = output[len(output)-maxOutputLog:]
		}
		log.Error(tag+"pipeline failed", zap.ByteString("output", output), zap.Error(err))
		err = fmt.Errorf("%w: %v: %s", ErrPipeline, err, output)
		return
	}
	log.Info(tag+"pipeline done", zap.Duration("elapsed", time.Since(start)))
	counts, err = r.Toolkit.OpenCountRaster(out)
	return
}
