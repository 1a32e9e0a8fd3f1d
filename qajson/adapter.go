package qajson

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/report"
	"github.com/wgdzlh/pcdensity/utils"

	"go.uber.org/zap"
)

const (
	ParamMinimumCount           = "Minimum Soundings per node"
	ParamMinimumCountPercentage = "Minimum Soundings per node percentage"

	FileTypePointCloud = "Point Cloud"
	FileTypeGrid       = "Survey DTMs"

	msgMissingPoints = "Missing input point data"
	msgMissingGrid   = "Missing input depth data"
)

var (
	ErrNoSurveyProducts = errors.New("qajson has no survey_products")
	ErrMissingParam     = errors.New("missing check parameter")
	ErrParamValue       = errors.New("invalid check parameter value")
)

// 执行一次密度检查
type RunFunc func(ctx context.Context, opts density.CheckOptions) (*density.CheckResult, error)

// 生成地图图层（EPSG:4326 MultiPolygon GeoJSON）
type MapFunc func(spec density.GridSpec, regions []density.Region) (mapJSON, extents []byte, err error)

type Adapter struct {
	Base   density.CheckOptions // Toolkit、Rasterizer、OutputDir等公共选项
	Run    RunFunc
	Map    MapFunc // 为空时不输出data.map/data.extents
	Now    func() time.Time
	logTag string
}

func NewAdapter(base density.CheckOptions, mapFn MapFunc) *Adapter {
	return &Adapter{
		Base:   base,
		Run:    RunCheck,
		Map:    mapFn,
		Now:    time.Now,
		logTag: "QajsonAdapter:",
	}
}

func RunCheck(ctx context.Context, opts density.CheckOptions) (*density.CheckResult, error) {
	return density.NewCheck(opts).Run(ctx)
}

// 运行文档中所有密度检查，结果写回对应检查的outputs；返回运行的检查数
func (a *Adapter) Process(ctx context.Context, root *Root) (n int, err error) {
	if root.QA.SurveyProducts == nil {
		err = ErrNoSurveyProducts
		return
	}
	for _, c := range root.QA.SurveyProducts.Checks {
		if c.Info.ID != density.CheckID {
			continue
		}
		if err = ctx.Err(); err != nil {
			return
		}
		a.runCheck(ctx, c)
		n++
	}
	log.Info(a.logTag+"qajson processed", zap.Int("checks", n))
	return
}

func (a *Adapter) now() string {
	if a.Now == nil {
		return utils.GetTimeTag(time.Now())
	}
	return utils.GetTimeTag(a.Now())
}

func (a *Adapter) runCheck(ctx context.Context, c *Check) {
	exec := &Execution{Start: a.now(), Status: StatusRunning}
	out := &Outputs{Execution: exec}
	c.Outputs = out

	pointFile, okPoints := c.Inputs.FirstFile(FileTypePointCloud)
	gridFile, okGrid := c.Inputs.FirstFile(FileTypeGrid)
	if !okPoints {
		exec.Status, exec.Error = StatusAborted, msgMissingPoints
	}
	if !okGrid {
		exec.Status, exec.Error = StatusAborted, msgMissingGrid
	}
	if exec.Status == StatusAborted {
		log.Info(a.logTag+"aborting density check", zap.String("reason", exec.Error))
		return
	}

	params, err := readParams(c.Inputs)
	if err != nil {
		exec.Status, exec.Error, exec.End = StatusFailed, err.Error(), a.now()
		log.Warn(a.logTag+"read check params failed", zap.Error(err))
		return
	}
	opts := a.Base
	opts.Params = params
	opts.PointCloud = pointFile
	opts.Reference = gridFile
	opts.Vectorize = opts.Vectorize || a.Map != nil

	run := a.Run
	if run == nil {
		run = RunCheck
	}
	res, err := run(ctx, opts)
	exec.End = a.now()
	if err != nil {
		exec.Status, exec.Error = StatusFailed, err.Error()
		return
	}
	exec.Status = StatusCompleted

	out.CheckState = StateFail
	if res.Passed {
		out.CheckState = StatePass
	}
	out.Messages = []string{report.Message(res)}
	out.Data = &OutputData{
		Chart: Chart{Type: ChartHistogram, Data: chartBins(res.Histogram)},
		Summary: Summary{
			TotalSoundings:          res.TotalNodes,
			CheckPassed:             res.Passed,
			PercentageOverThreshold: res.PercentagePassed,
			UnderThresholdSoundings: res.PercentageFailed,
			FailedNodes:             res.FailedNodes,
		},
	}
	if a.Map != nil {
		mapJSON, extents, e := a.Map(res.Grid, res.LowDensityRegions)
		if e != nil {
			// 地图图层只用于展示，失败时保留检查结果
			log.Warn(a.logTag+"build map layers failed", zap.String("pointCloud", pointFile), zap.Error(e))
			return
		}
		out.Data.Map, out.Data.Extents = utils.B2S(mapJSON), utils.B2S(extents)
	}
}

func chartBins(h density.Histogram) (bins []ChartBin) {
	bins = make([]ChartBin, len(h))
	for i, b := range h {
		bins[i] = ChartBin{Value: strconv.Itoa(b.Value), Count: b.Frequency}
	}
	return
}

func readParams(in Inputs) (p density.CheckParameters, err error) {
	v, ok := in.Param(ParamMinimumCount)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrMissingParam, ParamMinimumCount)
		return
	}
	f, err := paramFloat(ParamMinimumCount, v)
	if err != nil {
		return
	}
	p.MinimumCount = int(math.Trunc(f))
	if v, ok = in.Param(ParamMinimumCountPercentage); !ok {
		err = fmt.Errorf("%w: %s", ErrMissingParam, ParamMinimumCountPercentage)
		return
	}
	p.MinimumCountPercentage, err = paramFloat(ParamMinimumCountPercentage, v)
	return
}

// 参数值可能为数值或字符串
func paramFloat(name string, v any) (f float64, err error) {
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		if f, err = utils.StrToFloat(x); err != nil {
			err = fmt.Errorf("%w: %s=%q", ErrParamValue, name, x)
		}
	default:
		err = fmt.Errorf("%w: %s=%v", ErrParamValue, name, v)
	}
	return
}
