package density

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/utils"

	"go.uber.org/zap"
)

const (
	CheckID      = "1bdb56d7-a725-42b4-8c42-10dbe0c0dbda"
	CheckName    = "Algorithm Independent Density Check"
	CheckVersion = "1"

	DensityFileName = "density.tif"
	RegionsBaseName = "low-density-pixels"

	VectorFormatGPKG    = "gpkg"
	VectorFormatShp     = "shp"
	VectorFormatGeoJSON = "geojson"
)

// 成果目录名 algorithm_independent_density_check
var CheckDirName = utils.ToSnake(CheckName)

var vectorExts = map[string]string{
	VectorFormatGPKG:    ".gpkg",
	VectorFormatShp:     ".shp",
	VectorFormatGeoJSON: ".geojson",
}

// 矢量格式对应的文件后缀
func VectorExt(format string) (ext string, err error) {
	ext, ok := vectorExts[format]
	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnknownVectorFormat, format)
	}
	return
}

const (
	stageParams    = "parameters"
	stageGridSpec  = "grid-spec"
	stageRasterize = "rasterize"
	stageReconcile = "reconcile"
	stageHistogram = "histogram"
	stageEvaluate  = "evaluate"
	stageVectorize = "vectorize"
	stagePersist   = "persist"
)

type State int

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type CheckOptions struct {
	Params       CheckParameters
	PointCloud   string
	Reference    string
	OutputDir    string // 为空时不输出中间成果
	Vectorize    bool   // 未设置OutputDir时是否仍生成低密度区域矢量
	VectorFormat string
	TempDir      string // 为空时使用Toolkit的临时目录
	Toolkit      Toolkit
	Rasterizer   Rasterizer
}

// 输出成果路径
type Artifacts struct {
	Dir     string
	Density string
	Regions string
}

// 单次检查的结果，Run返回后不再变化
type CheckResult struct {
	TotalNodes        int64
	FailedNodes       int64
	PercentageFailed  float64
	PercentagePassed  float64
	Passed            bool
	Histogram         Histogram
	LowDensityRegions []Region
	Grid              GridSpec
	Params            CheckParameters
	PointCloud        string
	Reference         string
	Artifacts         Artifacts
	PersistErr        error // 成果输出失败不影响检查结果
}

// 点云密度检查，每次检查需新建实例
type Check struct {
	opts   CheckOptions
	mu     sync.Mutex
	state  State
	result *CheckResult
	err    error
	logTag string
}

func NewCheck(opts CheckOptions) *Check {
	if opts.VectorFormat == "" {
		opts.VectorFormat = VectorFormatGPKG
	}
	return &Check{
		opts:   opts,
		logTag: "DensityCheck:",
	}
}

func (c *Check) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Check) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Check) Result() *CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// 执行检查，只能调用一次
func (c *Check) Run(ctx context.Context) (res *CheckResult, err error) {
	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		err = ErrCheckReused
		return
	}
	c.state = StateRunning
	c.mu.Unlock()

	start := time.Now()
	res, err = c.run(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		res = nil
		c.state = StateFailed
		c.err = err
		log.Error(c.logTag+"check failed", zap.String("pointCloud", c.opts.PointCloud), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	c.state = StateCompleted
	c.result = res
	log.Info(c.logTag+"check completed", zap.Bool("passed", res.Passed), zap.Int64("failed", res.FailedNodes),
		zap.Int64("total", res.TotalNodes), zap.Duration("elapsed", time.Since(start)))
	return
}

func (c *Check) run(ctx context.Context) (res *CheckResult, err error) {
	o := c.opts
	if err = o.Params.Validate(); err != nil {
		err = stageErr(stageParams, ErrEvaluation, err)
		return
	}
	if o.Toolkit == nil || o.Rasterizer == nil {
		err = ErrMissingToolkit
		return
	}
	wantRegions := o.Vectorize || o.OutputDir != ""
	if o.OutputDir != "" {
		if _, err = VectorExt(o.VectorFormat); err != nil {
			err = stageErr(stageParams, ErrPersistence, err)
			return
		}
	}
	tmpRoot := o.TempDir
	if tp, ok := o.Toolkit.(TempDirProvider); ok && tmpRoot == "" {
		tmpRoot = tp.TempDir()
	}
	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}
	scratch, err := utils.GetUniqSubDir(tmpRoot)
	if err != nil {
		err = stageErr(stageRasterize, ErrRasterization, err)
		return
	}
	defer func() {
		if e := os.RemoveAll(scratch); e != nil {
			log.Warn(c.logTag+"remove scratch dir failed", zap.String("dir", scratch), zap.Error(e))
		}
	}()
	log.Info(c.logTag+"start check", zap.String("pointCloud", o.PointCloud), zap.String("grid", o.Reference),
		zap.Int("minimumCount", o.Params.MinimumCount), zap.Float64("minimumCountPercentage", o.Params.MinimumCountPercentage))

	ref, err := o.Toolkit.OpenReference(o.Reference)
	if err != nil {
		err = stageErr(stageGridSpec, ErrGridSpec, err)
		return
	}
	defer ref.Close()
	spec := ref.GridSpec()

	counts, err := o.Rasterizer.Rasterize(ctx, o.PointCloud, spec, scratch)
	if err != nil {
		err = stageErr(stageRasterize, ErrRasterization, err)
		return
	}
	defer counts.Close()

	rec, err := Reconcile(counts, ref, spec.NoData)
	if err != nil {
		err = stageErr(stageReconcile, ErrReconciliation, err)
		return
	}
	hist, err := BuildHistogram(counts, rec.MaxCount)
	if err != nil {
		err = stageErr(stageHistogram, ErrEvaluation, err)
		return
	}
	ev, err := Evaluate(hist, rec.ValidCells, o.Params)
	if err != nil {
		err = stageErr(stageEvaluate, ErrEvaluation, err)
		return
	}
	var regions []Region
	if wantRegions {
		bw, bh := counts.BlockSize()
		if regions, err = o.Toolkit.Vectorize(spec, bw, bh, LowDensityMask(counts, o.Params.MinimumCount)); err != nil {
			err = stageErr(stageVectorize, ErrVectorization, err)
			return
		}
		if regions == nil {
			regions = []Region{}
		}
	}
	res = &CheckResult{
		TotalNodes:        ev.TotalNodes,
		FailedNodes:       ev.FailedNodes,
		PercentageFailed:  ev.PercentageFailed,
		PercentagePassed:  ev.PercentagePassed,
		Passed:            ev.Passed,
		Histogram:         hist,
		LowDensityRegions: regions,
		Grid:              spec,
		Params:            o.Params,
		PointCloud:        o.PointCloud,
		Reference:         o.Reference,
	}
	if o.OutputDir != "" {
		res.Artifacts, res.PersistErr = c.persist(counts, spec, regions)
		if res.PersistErr != nil {
			log.Error(c.logTag+"persist outputs failed", zap.String("outputDir", o.OutputDir), zap.Error(res.PersistErr))
		}
	}
	return
}

// 输出路径：{outputDir}/{点云文件名}/{检查名}/
func ArtifactDir(outputDir, pointCloud string) string {
	return filepath.Join(outputDir, utils.GetFilenameWithoutExt(pointCloud), CheckDirName)
}

func (c *Check) persist(counts CountRaster, spec GridSpec, regions []Region) (a Artifacts, err error) {
	o := c.opts
	a.Dir = ArtifactDir(o.OutputDir, o.PointCloud)
	defer func() {
		err = stageErr(stagePersist, ErrPersistence, err)
	}()
	if err = os.MkdirAll(a.Dir, os.ModePerm); err != nil {
		return
	}
	density := filepath.Join(a.Dir, DensityFileName)
	if err = o.Toolkit.ExportDensity(counts, density); err != nil {
		return
	}
	a.Density = density
	ext, _ := VectorExt(o.VectorFormat)
	vec := filepath.Join(a.Dir, RegionsBaseName+ext)
	if err = o.Toolkit.WriteRegions(vec, o.VectorFormat, spec, regions); err != nil {
		return
	}
	a.Regions = vec
	log.Info(c.logTag+"outputs persisted", zap.String("dir", a.Dir), zap.Int("regions", len(regions)))
	return
}
