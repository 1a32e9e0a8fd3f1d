package pcdensity

import (
	"fmt"

	"github.com/lukeroth/gdal"
)

func PointsToWkt(x1, x2, y1, y2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", x1, x2, y1, y2)
}

// span: [minX, maxX, minY, maxY]
func SpanToWkt(span [4]float64) string {
	return PointsToWkt(span[0], span[1], span[2], span[3])
}

// 将面或多面中的各个面加入out（复制，不转移所有权）
func addPolygons(out, geo gdal.Geometry) (err error) {
	switch geo.Type() {
	case gdal.GT_Polygon:
		if !geo.IsEmpty() {
			err = out.AddGeometry(geo)
		}
	case gdal.GT_MultiPolygon:
		for i, n := 0, geo.GeometryCount(); i < n; i++ {
			if err = out.AddGeometry(geo.Geometry(i)); err != nil {
				return
			}
		}
	default:
		err = ErrGdalWrongGeoType
	}
	return
}
