package pcdensity

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// GDAL工具箱，实现density.Toolkit
type GdalToolbox struct {
	refMap map[string]gdal.SpatialReference
	rLock  sync.Mutex
	tmpDir string
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

var _ density.Toolkit = (*GdalToolbox)(nil)

// 初始化GDAL工具箱，tmpDir为可选的临时目录路径（未提供的话为系统临时目录）
func NewGdalToolbox(tmpDir ...string) *GdalToolbox {
	g := &GdalToolbox{
		refMap: map[string]gdal.SpatialReference{},
		logTag: "GdalToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// 临时文件根目录，检查未指定临时目录时使用
func (g *GdalToolbox) TempDir() string {
	if g.tmpDir != "" {
		return g.tmpDir
	}
	return os.TempDir()
}

// 获取坐标系定义（WKT或EPSG:n）对应的坐标系（可复用，故无需回收）
func (g *GdalToolbox) getRef(def string) (ref gdal.SpatialReference, err error) {
	key := strings.TrimSpace(def)
	if key == "" {
		err = ErrEmptyCRS
		return
	}
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[key]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if srid, isEpsg := parseEpsg(key); isEpsg {
		err = ref.FromEPSG(srid)
	} else {
		err = ref.FromWKT(key)
	}
	if err != nil {
		log.Error(g.logTag+"set spatial ref failed", zap.String("crs", abbrev(key)), zap.Error(err))
		ref.Destroy()
		err = fmt.Errorf("%w: %v", ErrInvalidCRS, err)
		return
	}
	// 数据轴次序固定为(经度,纬度)/(东,北)，否则转换坐标系或者转GeoJSON时可能出现次序倒置
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[key] = ref
	return
}

func (g *GdalToolbox) getSridRef(srid int) (gdal.SpatialReference, error) {
	return g.getRef(epsgPrefix + strconv.Itoa(srid))
}

// 解析"EPSG:n"形式的坐标系
func parseEpsg(def string) (srid int, ok bool) {
	if len(def) <= len(epsgPrefix) || !strings.EqualFold(def[:len(epsgPrefix)], epsgPrefix) {
		return
	}
	srid, err := strconv.Atoi(def[len(epsgPrefix):])
	ok = err == nil && srid > 0
	return
}

// 截短过长的WKT用于日志
func abbrev(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}

// 判断两个坐标系定义是否等价
func (g *GdalToolbox) SameCRS(a, b string) (same bool, err error) {
	ra, err := g.getRef(a)
	if err != nil {
		return
	}
	rb, err := g.getRef(b)
	if err != nil {
		return
	}
	same = ra.IsSame(rb)
	return
}

func (g *GdalToolbox) parseWKB(wkb GdalGeo, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKB(wkb, ref, len(wkb))
	if err != nil {
		log.Error(g.logTag+"parse wkb failed", zap.Error(err))
	}
	return
}
