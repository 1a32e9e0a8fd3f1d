package density

import (
	"fmt"
	"math"

	"github.com/wgdzlh/pcdensity/log"

	"go.uber.org/zap"
)

// 无效值约定，Defined为false时表示栅格未定义无效值
type NoData struct {
	Value   float64
	Defined bool
}

func NoDataValue(v float64) NoData {
	return NoData{Value: v, Defined: true}
}

// 判断v是否为无效值；NaN无法直接比较相等，需单独处理
func (n NoData) Is(v float64) bool {
	if !n.Defined {
		return false
	}
	if math.IsNaN(n.Value) {
		return math.IsNaN(v)
	}
	return v == n.Value
}

func (n NoData) String() string {
	if !n.Defined {
		return "undefined"
	}
	return fmt.Sprint(n.Value)
}

// 目标格网几何，Origin为左下角坐标
type GridSpec struct {
	Resolution float64
	OriginX    float64
	OriginY    float64
	Width      int
	Height     int
	CRS        string // WKT
	NoData     NoData
}

func (s GridSpec) Cells() int {
	return s.Width * s.Height
}

func (s GridSpec) Validate() (err error) {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		err = ErrEmptyGrid
	case !(s.Resolution > 0) || math.IsInf(s.Resolution, 0):
		err = ErrBadResolution
	case s.CRS == "":
		err = ErrNoCRS
	}
	return
}

// 左上角起算的北向上仿射变换
func (s GridSpec) GeoTransform() [6]float64 {
	return [6]float64{
		s.OriginX, s.Resolution, 0,
		s.OriginY + float64(s.Height)*s.Resolution, 0, -s.Resolution,
	}
}

// 格网范围 [minX, maxX, minY, maxY]
func (s GridSpec) Span() [4]float64 {
	return [4]float64{
		s.OriginX,
		s.OriginX + float64(s.Width)*s.Resolution,
		s.OriginY,
		s.OriginY + float64(s.Height)*s.Resolution,
	}
}

// 坐标所在格元的行列号（行号自顶部起算），不在格网内时ok为false
// 格元为左闭右开区间，格网右、上边界上的点不计入
func (s GridSpec) Cell(x, y float64) (row, col int, ok bool) {
	fc := math.Floor((x - s.OriginX) / s.Resolution)
	fr := math.Floor((y - s.OriginY) / s.Resolution)
	if math.IsNaN(fc) || math.IsNaN(fr) || fc < 0 || fr < 0 || fc >= float64(s.Width) || fr >= float64(s.Height) {
		return
	}
	col = int(fc)
	row = s.Height - 1 - int(fr)
	ok = true
	return
}

// 由参考栅格的仿射变换推导格网，原点换算至左下角(row=height, col=0)
// 像元非正方形时统一采用X方向分辨率
func GridSpecFromGeoTransform(gt [6]float64, width, height int, crs string, nd NoData) (spec GridSpec, err error) {
	if gt[2] != 0 || gt[4] != 0 {
		err = ErrRotatedGrid
		return
	}
	spec = GridSpec{
		Resolution: gt[1],
		OriginX:    gt[0] + float64(height)*gt[2],
		OriginY:    gt[3] + float64(height)*gt[5],
		Width:      width,
		Height:     height,
		CRS:        crs,
		NoData:     nd,
	}
	if gt[5] >= 0 {
		err = ErrRotatedGrid
		return
	}
	if math.Abs(gt[5]) != gt[1] {
		log.Warn("density: non-square pixels, using x resolution", zap.Float64("resX", gt[1]), zap.Float64("resY", gt[5]))
	}
	err = spec.Validate()
	return
}

// 栅格读写窗口
type Window struct {
	XOff, YOff    int
	Width, Height int
}

func (w Window) Size() int {
	return w.Width * w.Height
}

// 按分块大小切分栅格，末行末列的分块可能较小
func Blocks(width, height, blockW, blockH int) (ws []Window) {
	if blockW <= 0 {
		blockW = width
	}
	if blockH <= 0 {
		blockH = height
	}
	for y := 0; y < height; y += blockH {
		h := min(blockH, height-y)
		for x := 0; x < width; x += blockW {
			ws = append(ws, Window{XOff: x, YOff: y, Width: min(blockW, width-x), Height: h})
		}
	}
	return
}
