package pcdensity

import (
	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 缓冲并简化单个区域，转至targetRef
func (g *GdalToolbox) bufferAndSimp(geo gdal.Geometry, dist float64, targetRef gdal.SpatialReference) (ret gdal.Geometry, err error) {
	buffered := geo.Buffer(dist, MapBufferSegs)
	defer buffered.Destroy()
	// Douglas-Peucker，不保持拓扑
	ret = buffered.Simplify(dist)
	if err = ret.TransformTo(targetRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		ret.Destroy()
	}
	return
}

// 生成地图展示用图层：低密度区域按5倍像元宽度缓冲、简化，与格网范围一起转为EPSG:4326 MultiPolygon
func (g *GdalToolbox) MapLayers(spec density.GridSpec, regions []density.Region) (ml MapLayers, err error) {
	ref, err := g.getRef(spec.CRS)
	if err != nil {
		return
	}
	tRef, err := g.getSridRef(UNIVERSAL_SRID)
	if err != nil {
		return
	}
	var (
		dist = MapBufferPixels * spec.Resolution
		geo  gdal.Geometry
		simp gdal.Geometry
		pix  = gdal.Create(gdal.GT_MultiPolygon)
		gc   = []destroyable{pix}
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for _, r := range regions {
		if geo, err = g.parseWKB(r.Geom, ref); err != nil {
			return
		}
		gc = append(gc, geo)
		if simp, err = g.bufferAndSimp(geo, dist, tRef); err != nil {
			return
		}
		gc = append(gc, simp)
		if err = addPolygons(pix, simp); err != nil {
			return
		}
	}
	ml.Map = utils.S2B(pix.ToJSON())

	box, err := gdal.CreateFromWKT(SpanToWkt(spec.Span()), ref)
	if err != nil {
		return
	}
	gc = append(gc, box)
	if err = box.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"extent transform failed", zap.Error(err))
		return
	}
	ext := gdal.Create(gdal.GT_MultiPolygon)
	gc = append(gc, ext)
	if err = addPolygons(ext, box); err != nil {
		return
	}
	ml.Extents = utils.S2B(ext.ToJSON())
	log.Info(g.logTag+"map layers generated", zap.Int("regions", len(regions)), zap.Int("polygons", pix.GeometryCount()))
	return
}
