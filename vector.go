package pcdensity

import (
	"fmt"
	"math"
	"os"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 将掩膜栅格化到内存数据集，按8邻域连通矢量化为多边形
func (g *GdalToolbox) Vectorize(spec density.GridSpec, blockW, blockH int, fill density.MaskFunc) (regions []density.Region, err error) {
	if err = spec.Validate(); err != nil {
		return
	}
	ref, err := g.getRef(spec.CRS)
	if err != nil {
		return
	}
	driver, err := gdal.GetDriverByName(MEM_DRIVER_NAME)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrGdalDriverCreate, err)
		return
	}
	mds := driver.Create("", spec.Width, spec.Height, 1, gdal.Byte, nil)
	defer mds.Close()
	if err = mds.SetGeoTransform(spec.GeoTransform()); err != nil {
		return
	}
	if err = mds.SetProjection(spec.CRS); err != nil {
		return
	}
	mask := mds.RasterBand(1)
	var (
		buf    []uint8
		marked int
	)
	for _, w := range density.Blocks(spec.Width, spec.Height, blockW, blockH) {
		n := w.Size()
		if cap(buf) < n {
			buf = make([]uint8, n)
		}
		buf = buf[:n]
		if err = fill(w, buf); err != nil {
			return
		}
		for _, v := range buf {
			if v != 0 {
				marked++
			}
		}
		if err = mask.IO(gdal.Write, w.XOff, w.YOff, w.Width, w.Height, buf, w.Width, w.Height, 0, 0); err != nil {
			return
		}
	}
	regions = []density.Region{}
	if marked == 0 {
		log.Info(g.logTag + "no low density pixels to vectorize")
		return
	}

	vds, ok := gdal.OGRDriverByName(OGR_MEM_DRIVER_NAME).Create("regions", nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	defer vds.Destroy()
	layer := vds.CreateLayer(REGIONS_LAYER, ref, gdal.GT_Polygon, nil)
	field := gdal.CreateFieldDefinition(FIELD_VALUE, gdal.FT_Integer)
	defer field.Destroy()
	if err = layer.CreateField(field, false); err != nil {
		return
	}
	// 掩膜自身作为mask，仅对值为1的像元生成多边形
	if err = mask.Polygonize(mask, layer, 0, []string{POLYGONIZE_8CONNECTED}, noProgress, nil); err != nil {
		err = fmt.Errorf("%w: %v", ErrPolygonize, err)
		return
	}
	cellArea := spec.Resolution * spec.Resolution
	var (
		feature *gdal.Feature
		wkb     []byte
		e       error
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	layer.ResetReading()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		geo := feature.Geometry()
		if wkb, e = geo.ToWKB(); e != nil {
			log.Error(g.logTag+"err in wkb convert", zap.Error(e))
			continue
		}
		regions = append(regions, density.Region{
			ID:    len(regions) + 1,
			Cells: int(math.Round(geo.Area() / cellArea)),
			Geom:  wkb,
		})
	}
	log.Info(g.logTag+"low density pixels vectorized", zap.Int("pixels", marked), zap.Int("regions", len(regions)))
	return
}

// 将低密度区域写出为矢量文件，format为gpkg/shp/geojson
func (g *GdalToolbox) WriteRegions(path, format string, spec density.GridSpec, regions []density.Region) (err error) {
	name, ok := vectorDrivers[format]
	if !ok {
		err = fmt.Errorf("%w: %q", density.ErrUnknownVectorFormat, format)
		return
	}
	ref, err := g.getRef(spec.CRS)
	if err != nil {
		return
	}
	// 驱动不会覆盖已有文件，shp需连同附属文件一起删除
	for _, f := range utils.GetVectorFileSet(path) {
		if e := os.Remove(f); e != nil && !os.IsNotExist(e) {
			err = e
			return
		}
	}
	log.Info(g.logTag+"output region files", zap.String("path", path), zap.String("driver", name))
	var opts []string
	if name == SHP_DRIVER_NAME {
		opts = []string{ENCODING_OPTION}
	}
	ds, ok := gdal.OGRDriverByName(name).Create(path, nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	defer ds.Destroy() // 生成矢量文件 + 释放资源
	layer := ds.CreateLayer(REGIONS_LAYER, ref, gdal.GT_Polygon, opts)
	for _, fieldName := range []string{FIELD_ID, FIELD_CELLS} {
		fd := gdal.CreateFieldDefinition(fieldName, gdal.FT_Integer)
		err = layer.CreateField(fd, false)
		fd.Destroy()
		if err != nil {
			return
		}
	}
	var (
		def     = layer.Definition()
		feature gdal.Feature
		geo     gdal.Geometry
		cnt     int
		e       error
		gc      = make([]destroyable, 0, len(regions))
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for _, r := range regions {
		feature = def.Create()
		gc = append(gc, feature)
		feature.SetFieldInteger(0, r.ID)
		feature.SetFieldInteger(1, r.Cells)
		if geo, e = g.parseWKB(r.Geom, ref); e != nil {
			err = e
			return
		}
		if e = feature.SetGeometryDirectly(geo); e != nil {
			err = e
			return
		}
		if e = layer.Create(feature); e != nil {
			log.Error(g.logTag+"err in create feature of layer", zap.Error(e))
			err = e
			return
		}
		cnt++
	}
	log.Info(g.logTag+"region files created", zap.String("path", path), zap.Int("total", len(regions)), zap.Int("valid", cnt))
	return
}
