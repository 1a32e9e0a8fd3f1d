package pcdensity

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 参考栅格第1波段，只读
type referenceRaster struct {
	ds     gdal.Dataset
	band   gdal.RasterBand
	spec   density.GridSpec
	closed bool
}

func (r *referenceRaster) Size() (int, int) { return r.spec.Width, r.spec.Height }

func (r *referenceRaster) BlockSize() (int, int) { return r.band.BlockSize() }

func (r *referenceRaster) GridSpec() density.GridSpec { return r.spec }

func (r *referenceRaster) Read(w density.Window, buf []float64) (err error) {
	if len(buf) < w.Size() {
		return density.ErrBufferSize
	}
	if err = r.band.IO(gdal.Read, w.XOff, w.YOff, w.Width, w.Height, buf[:w.Size()], w.Width, w.Height, 0, 0); err != nil {
		err = fmt.Errorf("%w: %v", ErrTifReadFailed, err)
	}
	return
}

func (r *referenceRaster) Close() error {
	if !r.closed {
		r.closed = true
		r.ds.Close()
	}
	return nil
}

// 计数栅格，Int32单波段
type countRaster struct {
	ds     gdal.Dataset
	band   gdal.RasterBand
	path   string
	width  int
	height int
	closed bool
}

func (c *countRaster) Size() (int, int) { return c.width, c.height }

func (c *countRaster) BlockSize() (int, int) { return c.band.BlockSize() }

func (c *countRaster) Path() string { return c.path }

func (c *countRaster) Read(w density.Window, buf []int32) (err error) {
	if err = c.check(w, len(buf)); err != nil {
		return
	}
	if err = c.band.IO(gdal.Read, w.XOff, w.YOff, w.Width, w.Height, buf[:w.Size()], w.Width, w.Height, 0, 0); err != nil {
		err = fmt.Errorf("%w: %v", ErrTifReadFailed, err)
	}
	return
}

func (c *countRaster) Write(w density.Window, buf []int32) (err error) {
	if err = c.check(w, len(buf)); err != nil {
		return
	}
	if err = c.band.IO(gdal.Write, w.XOff, w.YOff, w.Width, w.Height, buf[:w.Size()], w.Width, w.Height, 0, 0); err != nil {
		err = fmt.Errorf("%w: %v", ErrTifWriteFailed, err)
	}
	return
}

func (c *countRaster) check(w density.Window, n int) error {
	if n < w.Size() {
		return density.ErrBufferSize
	}
	if w.XOff < 0 || w.YOff < 0 || w.XOff+w.Width > c.width || w.YOff+w.Height > c.height {
		return density.ErrWindowOutOfRange
	}
	return nil
}

func (c *countRaster) Close() error {
	if !c.closed {
		c.closed = true
		c.ds.FlushCache()
		c.ds.Close()
	}
	return nil
}

func noProgress(complete float64, message string, data interface{}) int {
	return 1
}

// 打开参考栅格并提取格网：分辨率、左下角原点、行列数、坐标系与无效值
func (g *GdalToolbox) OpenReference(path string) (ref density.Reference, err error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open reference tif failed", zap.String("path", path), zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrInvalidTif, path, err)
		return
	}
	defer func() {
		if err != nil {
			ds.Close()
		}
	}()
	if ds.RasterCount() < 1 {
		err = ErrEmptyTif
		return
	}
	band := ds.RasterBand(1)
	nd, err := bandNoData(band)
	if err != nil {
		return
	}
	spec, err := density.GridSpecFromGeoTransform(ds.GeoTransform(), ds.RasterXSize(), ds.RasterYSize(), ds.Projection(), nd)
	if err != nil {
		return
	}
	bw, bh := band.BlockSize()
	log.Info(g.logTag+"reference grid", zap.String("path", path), zap.Float64("resolution", spec.Resolution),
		zap.Float64("originX", spec.OriginX), zap.Float64("originY", spec.OriginY), zap.Int("width", spec.Width),
		zap.Int("height", spec.Height), zap.Stringer("nodata", spec.NoData), zap.Int("blockX", bw), zap.Int("blockY", bh))
	ref = &referenceRaster{ds: ds, band: band, spec: spec}
	return
}

// 只读取格网，不保留数据集
func (g *GdalToolbox) ReadGridSpec(path string) (spec density.GridSpec, err error) {
	ref, err := g.OpenReference(path)
	if err != nil {
		return
	}
	spec = ref.GridSpec()
	ref.Close()
	return
}

// 未定义无效值时，浮点波段以NaN为无效值，整型波段无法推断
func bandNoData(band gdal.RasterBand) (nd density.NoData, err error) {
	if v, ok := band.NoDataValue(); ok {
		nd = density.NoDataValue(v)
		return
	}
	switch band.RasterDataType() {
	case gdal.Float32, gdal.Float64:
		nd = density.NoDataValue(math.NaN())
	default:
		err = density.ErrNoDataUndefined
	}
	return
}

// 新建与格网对齐、初值为0的计数栅格
func (g *GdalToolbox) CreateCountRaster(path string, spec density.GridSpec) (cr density.CountRaster, err error) {
	if err = spec.Validate(); err != nil {
		return
	}
	if _, err = os.Stat(filepath.Dir(path)); err != nil {
		return
	}
	driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrGdalDriverCreate, err)
		return
	}
	ds := driver.Create(path, spec.Width, spec.Height, 1, gdal.Int32, countCreateOptions)
	c := &countRaster{ds: ds, path: path, width: spec.Width, height: spec.Height}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()
	if err = ds.SetGeoTransform(spec.GeoTransform()); err != nil {
		return
	}
	if err = ds.SetProjection(spec.CRS); err != nil {
		return
	}
	c.band = ds.RasterBand(1)
	if err = c.band.SetNoDataValue(float64(density.CountNoData)); err != nil {
		return
	}
	if err = c.band.Fill(0, 0); err != nil {
		return
	}
	log.Info(g.logTag+"count raster created", zap.String("path", path), zap.Int("width", spec.Width), zap.Int("height", spec.Height))
	cr = c
	return
}

// 以读写方式打开已有的计数栅格（如PDAL生成的）
func (g *GdalToolbox) OpenCountRaster(path string) (cr density.CountRaster, err error) {
	ds, err := gdal.Open(path, gdal.Update)
	if err != nil {
		log.Error(g.logTag+"open count tif failed", zap.String("path", path), zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrGdalDriverOpen, path, err)
		return
	}
	if ds.RasterCount() < 1 {
		ds.Close()
		err = ErrEmptyTif
		return
	}
	cr = &countRaster{ds: ds, band: ds.RasterBand(1), path: path, width: ds.RasterXSize(), height: ds.RasterYSize()}
	return
}

// 将计数栅格导出为压缩分块的GeoTIFF
func (g *GdalToolbox) ExportDensity(src density.CountRaster, path string) (err error) {
	driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrGdalDriverCreate, err)
		return
	}
	c, ok := src.(*countRaster)
	if !ok || c.closed {
		err = fmt.Errorf("%w: density export needs an open gdal count raster", ErrInvalidTif)
		return
	}
	c.ds.FlushCache()
	out := driver.CreateCopy(path, c.ds, 0, densityExportOptions, noProgress, nil)
	out.FlushCache()
	out.Close()
	if _, err = os.Stat(path); err != nil {
		log.Error(g.logTag+"density export failed", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info(g.logTag+"density exported", zap.String("src", c.path), zap.String("path", path))
	return
}
