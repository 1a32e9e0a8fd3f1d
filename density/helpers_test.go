package density

import (
	"context"
	"errors"
	"io"
	"path/filepath"
)

const testCRS = `PROJCS["WGS 84 / Pseudo-Mercator",AUTHORITY["EPSG","3857"]]`

// 与测试用例一致的格网：左上角(16129836,-4572563)，分辨率1000
func testSpec(width, height int) GridSpec {
	return GridSpec{
		Resolution: 1000,
		OriginX:    16129836,
		OriginY:    -4572563 - float64(height)*1000,
		Width:      width,
		Height:     height,
		CRS:        testCRS,
		NoData:     NoDataValue(-9999),
	}
}

type memBand struct {
	w, h   int
	bw, bh int
	data   []int32
	path   string
	closed bool
	reads  int
}

func newMemBand(w, h, bw, bh int) *memBand {
	return &memBand{w: w, h: h, bw: bw, bh: bh, data: make([]int32, w*h)}
}

func bandFrom(rows [][]int32, bw, bh int) *memBand {
	b := newMemBand(len(rows[0]), len(rows), bw, bh)
	for r, row := range rows {
		copy(b.data[r*b.w:], row)
	}
	return b
}

func (b *memBand) Size() (int, int)      { return b.w, b.h }
func (b *memBand) BlockSize() (int, int) { return b.bw, b.bh }
func (b *memBand) Path() string          { return b.path }
func (b *memBand) Close() error          { b.closed = true; return nil }

func (b *memBand) check(w Window, n int) error {
	if n < w.Size() {
		return ErrBufferSize
	}
	if w.XOff < 0 || w.YOff < 0 || w.XOff+w.Width > b.w || w.YOff+w.Height > b.h {
		return ErrWindowOutOfRange
	}
	return nil
}

func (b *memBand) Read(w Window, buf []int32) error {
	if err := b.check(w, len(buf)); err != nil {
		return err
	}
	b.reads++
	for r := 0; r < w.Height; r++ {
		copy(buf[r*w.Width:(r+1)*w.Width], b.data[(w.YOff+r)*b.w+w.XOff:])
	}
	return nil
}

func (b *memBand) Write(w Window, buf []int32) error {
	if err := b.check(w, len(buf)); err != nil {
		return err
	}
	for r := 0; r < w.Height; r++ {
		copy(b.data[(w.YOff+r)*b.w+w.XOff:(w.YOff+r)*b.w+w.XOff+w.Width], buf[r*w.Width:(r+1)*w.Width])
	}
	return nil
}

func (b *memBand) rows() [][]int32 {
	out := make([][]int32, b.h)
	for r := range out {
		out[r] = append([]int32(nil), b.data[r*b.w:(r+1)*b.w]...)
	}
	return out
}

type memRef struct {
	spec   GridSpec
	bw, bh int
	data   []float64
	closed bool
}

func refFrom(spec GridSpec, rows [][]float64, bw, bh int) *memRef {
	ref := &memRef{spec: spec, bw: bw, bh: bh, data: make([]float64, spec.Cells())}
	for r, row := range rows {
		copy(ref.data[r*spec.Width:], row)
	}
	return ref
}

func (r *memRef) Size() (int, int)      { return r.spec.Width, r.spec.Height }
func (r *memRef) BlockSize() (int, int) { return r.bw, r.bh }
func (r *memRef) GridSpec() GridSpec    { return r.spec }
func (r *memRef) Close() error          { r.closed = true; return nil }

func (r *memRef) Read(w Window, buf []float64) error {
	for y := 0; y < w.Height; y++ {
		copy(buf[y*w.Width:(y+1)*w.Width], r.data[(w.YOff+y)*r.spec.Width+w.XOff:])
	}
	return nil
}

type identity struct{ closed bool }

func (i *identity) Reproject(_, _, _ []float64) error { return nil }
func (i *identity) Close()                            { i.closed = true }

// 平移重投影，模拟坐标系转换
type shift struct{ dx, dy float64 }

func (s shift) Reproject(xs, ys, _ []float64) error {
	for i := range xs {
		xs[i] += s.dx
		ys[i] += s.dy
	}
	return nil
}
func (s shift) Close() {}

type memToolkit struct {
	ref        *memRef
	refErr     error
	reproj     Reprojector
	reprojErr  error
	created    []*memBand
	exported   []string
	written    []string
	exportErr  error
	vectorized [][]uint8
	tempDir    string
}

func (t *memToolkit) TempDir() string { return t.tempDir }

func (t *memToolkit) OpenReference(string) (Reference, error) {
	if t.refErr != nil {
		return nil, t.refErr
	}
	return t.ref, nil
}

func (t *memToolkit) CreateCountRaster(path string, spec GridSpec) (CountRaster, error) {
	b := newMemBand(spec.Width, spec.Height, 2, 2)
	b.path = path
	t.created = append(t.created, b)
	return b, nil
}

func (t *memToolkit) OpenCountRaster(path string) (CountRaster, error) {
	return nil, errors.New("not supported")
}

func (t *memToolkit) NewReprojector(srcCRS string, _ GridSpec) (Reprojector, error) {
	if t.reprojErr != nil {
		return nil, t.reprojErr
	}
	if t.reproj != nil {
		return t.reproj, nil
	}
	return &identity{}, nil
}

// 简单的8邻域连通域统计，每个连通域返回一个Region
func (t *memToolkit) Vectorize(spec GridSpec, bw, bh int, fill MaskFunc) (regions []Region, err error) {
	mask := make([]uint8, spec.Cells())
	for _, w := range Blocks(spec.Width, spec.Height, bw, bh) {
		buf := make([]uint8, w.Size())
		if err = fill(w, buf); err != nil {
			return
		}
		for y := 0; y < w.Height; y++ {
			copy(mask[(w.YOff+y)*spec.Width+w.XOff:], buf[y*w.Width:(y+1)*w.Width])
		}
	}
	t.vectorized = append(t.vectorized, mask)
	seen := make([]bool, len(mask))
	for i, v := range mask {
		if v == 0 || seen[i] {
			continue
		}
		cells := 0
		stack := []int{i}
		seen[i] = true
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cells++
			pr, pc := p/spec.Width, p%spec.Width
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					r, c := pr+dr, pc+dc
					if r < 0 || c < 0 || r >= spec.Height || c >= spec.Width {
						continue
					}
					q := r*spec.Width + c
					if mask[q] == 1 && !seen[q] {
						seen[q] = true
						stack = append(stack, q)
					}
				}
			}
		}
		regions = append(regions, Region{ID: len(regions) + 1, Cells: cells})
	}
	return
}

func (t *memToolkit) ExportDensity(src CountRaster, path string) error {
	if t.exportErr != nil {
		return t.exportErr
	}
	t.exported = append(t.exported, path)
	return nil
}

func (t *memToolkit) WriteRegions(path, format string, spec GridSpec, regions []Region) error {
	t.written = append(t.written, path)
	return nil
}

// 按计数矩阵生成点：每个格元内均匀分布count个点
func pointsFor(spec GridSpec, counts [][]int) (xs, ys []float64) {
	top := spec.OriginY + float64(spec.Height)*spec.Resolution
	for r, row := range counts {
		for c, n := range row {
			for k := 0; k < n; k++ {
				f := (float64(k) + 0.5) / float64(n)
				xs = append(xs, spec.OriginX+(float64(c)+f)*spec.Resolution)
				ys = append(ys, top-(float64(r)+1-f)*spec.Resolution)
			}
		}
	}
	return
}

type slicePoints struct {
	xs, ys []float64
	crs    string
	pos    int
	closed bool
}

func (s *slicePoints) CRS() string { return s.crs }

func (s *slicePoints) ReadPoints(xs, ys, zs []float64) (n int, err error) {
	n = copy(xs, s.xs[s.pos:])
	copy(ys, s.ys[s.pos:s.pos+n])
	for i := 0; i < n; i++ {
		zs[i] = 2.3
	}
	s.pos += n
	if s.pos >= len(s.xs) {
		err = io.EOF
	}
	return
}

func (s *slicePoints) Close() error { s.closed = true; return nil }

// 直接返回给定计数矩阵的栅格化器
type fixedRasterizer struct {
	tk      *memToolkit
	counts  [][]int32
	err     error
	calls   int
	scratch string
}

func (f *fixedRasterizer) Rasterize(_ context.Context, _ string, spec GridSpec, scratch string) (CountRaster, error) {
	f.calls++
	f.scratch = scratch
	if f.err != nil {
		return nil, f.err
	}
	b := bandFrom(f.counts, 2, 2)
	b.path = filepath.Join(scratch, ScratchCountName)
	f.tk.created = append(f.tk.created, b)
	return b, nil
}

var scenario = [][]int32{
	{1, 1, 5},
	{5, 5, 5},
	{6, 5, 7},
	{5, 6, 9},
}

func scenarioInts() [][]int {
	out := make([][]int, len(scenario))
	for r, row := range scenario {
		for _, v := range row {
			out[r] = append(out[r], int(v))
		}
	}
	return out
}

func validRef(spec GridSpec) *memRef {
	ref := &memRef{spec: spec, bw: 2, bh: 2, data: make([]float64, spec.Cells())}
	for i := range ref.data {
		ref.data[i] = 12.5
	}
	return ref
}
