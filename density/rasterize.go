package density

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/wgdzlh/pcdensity/log"

	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 1 << 16
	DefaultMaxTiles  = 64
	ScratchCountName = "density.tif"
)

// 分批读取点坐标，读完时返回io.EOF（可同时返回n>0）
type PointReader interface {
	CRS() string
	ReadPoints(xs, ys, zs []float64) (n int, err error)
	Close() error
}

// 计数累加器：只在内存中保留有限数量的分块，超出时写回计数栅格
type CountAccumulator struct {
	band     CountBand
	spec     GridSpec
	blockW   int
	blockH   int
	nbx      int
	maxTiles int
	tiles    map[int]*countTile
	scratch  []int32

	Counted int64
	Outside int64
}

type countTile struct {
	win Window
	buf []int32
}

func NewCountAccumulator(band CountBand, spec GridSpec, maxTiles int) *CountAccumulator {
	bw, bh := band.BlockSize()
	if bw <= 0 || bw > spec.Width {
		bw = spec.Width
	}
	if bh <= 0 || bh > spec.Height {
		bh = spec.Height
	}
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	return &CountAccumulator{
		band:     band,
		spec:     spec,
		blockW:   bw,
		blockH:   bh,
		nbx:      (spec.Width + bw - 1) / bw,
		maxTiles: maxTiles,
		tiles:    make(map[int]*countTile, maxTiles),
		scratch:  make([]int32, bw*bh),
	}
}

// 累加一批已转换至格网坐标系的点
func (a *CountAccumulator) Add(xs, ys []float64) (err error) {
	for i := range xs {
		row, col, ok := a.spec.Cell(xs[i], ys[i])
		if !ok {
			a.Outside++
			continue
		}
		bx, by := col/a.blockW, row/a.blockH
		key := by*a.nbx + bx
		t, ok := a.tiles[key]
		if !ok {
			if len(a.tiles) >= a.maxTiles {
				if err = a.Flush(); err != nil {
					return
				}
			}
			t = a.newTile(bx, by)
			a.tiles[key] = t
		}
		t.buf[(row-t.win.YOff)*t.win.Width+col-t.win.XOff]++
		a.Counted++
	}
	return
}

func (a *CountAccumulator) newTile(bx, by int) *countTile {
	x, y := bx*a.blockW, by*a.blockH
	w := Window{XOff: x, YOff: y, Width: min(a.blockW, a.spec.Width-x), Height: min(a.blockH, a.spec.Height-y)}
	return &countTile{win: w, buf: make([]int32, w.Size())}
}

// 将内存中的分块累加写回计数栅格
func (a *CountAccumulator) Flush() (err error) {
	for key, t := range a.tiles {
		buf := a.scratch[:t.win.Size()]
		if err = a.band.Read(t.win, buf); err != nil {
			return
		}
		for i, v := range t.buf {
			buf[i] += v
		}
		if err = a.band.Write(t.win, buf); err != nil {
			return
		}
		delete(a.tiles, key)
	}
	return
}

// 原生流式栅格化：逐批读取点、转换坐标系并计数
type PointRasterizer struct {
	Toolkit   Toolkit
	Open      func(path string) (PointReader, error)
	SourceCRS string // 覆盖点云自带的坐标系
	BatchSize int
	MaxTiles  int
}

func (p *PointRasterizer) Rasterize(_ context.Context, pointCloud string, spec GridSpec, scratchDir string) (counts CountRaster, err error) {
	const tag = "PointRasterizer:"
	reader, err := p.Open(pointCloud)
	if err != nil {
		return
	}
	defer reader.Close()
	srcCRS := p.SourceCRS
	if srcCRS == "" {
		srcCRS = reader.CRS()
	}
	if srcCRS == "" {
		err = ErrUndefinedSource
		return
	}
	reproj, err := p.Toolkit.NewReprojector(srcCRS, spec)
	if err != nil {
		return
	}
	defer reproj.Close()
	if counts, err = p.Toolkit.CreateCountRaster(filepath.Join(scratchDir, ScratchCountName), spec); err != nil {
		return
	}
	defer func() {
		if err != nil {
			counts.Close()
			counts = nil
		}
	}()
	n := p.BatchSize
	if n <= 0 {
		n = DefaultBatchSize
	}
	var (
		xs    = make([]float64, n)
		ys    = make([]float64, n)
		zs    = make([]float64, n)
		acc   = NewCountAccumulator(counts, spec, p.MaxTiles)
		total int64
		got   int
		rErr  error
	)
	log.Info(tag+"start rasterize points", zap.String("pointCloud", pointCloud), zap.Int("width", spec.Width), zap.Int("height", spec.Height))
	for {
		got, rErr = reader.ReadPoints(xs, ys, zs)
		if got > 0 {
			if err = reproj.Reproject(xs[:got], ys[:got], zs[:got]); err != nil {
				return
			}
			if err = acc.Add(xs[:got], ys[:got]); err != nil {
				return
			}
			total += int64(got)
		}
		if errors.Is(rErr, io.EOF) {
			break
		}
		if rErr != nil {
			err = rErr
			return
		}
	}
	if err = acc.Flush(); err != nil {
		return
	}
	log.Info(tag+"points rasterized", zap.Int64("points", total), zap.Int64("counted", acc.Counted), zap.Int64("outside", acc.Outside))
	return
}
