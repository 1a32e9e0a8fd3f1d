package pcdensity

import (
	"fmt"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 点坐标批量转换，源与目标坐标系相同时不做处理
type pointTransform struct {
	ct   gdal.CoordinateTransform
	same bool
}

func (t *pointTransform) Reproject(xs, ys, zs []float64) error {
	if t.same || len(xs) == 0 {
		return nil
	}
	if !t.ct.Transform(len(xs), xs, ys, zs) {
		return ErrTransformFailed
	}
	return nil
}

func (t *pointTransform) Close() {
	if !t.same {
		t.ct.Destroy()
		t.same = true
	}
}

// 点云坐标系 -> 格网坐标系
func (g *GdalToolbox) NewReprojector(srcCRS string, spec density.GridSpec) (rp density.Reprojector, err error) {
	src, err := g.getRef(srcCRS)
	if err != nil {
		err = fmt.Errorf("point cloud crs: %w", err)
		return
	}
	dst, err := g.getRef(spec.CRS)
	if err != nil {
		err = fmt.Errorf("grid crs: %w", err)
		return
	}
	same, err := g.SameCRS(srcCRS, spec.CRS)
	if err != nil {
		return
	}
	if same {
		log.Info(g.logTag + "point cloud already in grid crs")
		rp = &pointTransform{same: true}
		return
	}
	log.Info(g.logTag+"reproject points to grid crs", zap.String("src", abbrev(srcCRS)), zap.String("dst", abbrev(spec.CRS)))
	ct := gdal.CreateCoordinateTransform(src, dst)
	if ct == (gdal.CoordinateTransform{}) {
		log.Error(g.logTag+"create coordinate transform failed", zap.String("src", abbrev(srcCRS)), zap.String("dst", abbrev(spec.CRS)))
		err = fmt.Errorf("%w: no transform from point cloud crs to grid crs", ErrTransformFailed)
		return
	}
	rp = &pointTransform{ct: ct}
	return
}
