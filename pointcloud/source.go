package pointcloud

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wgdzlh/pcdensity/density"
)

// 点云数据源类型
type SourceKind int

const (
	KindLas SourceKind = iota
	KindTileDB
)

func (k SourceKind) String() string {
	switch k {
	case KindLas:
		return "las"
	case KindTileDB:
		return "tiledb"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrUnknownSource = errors.New("could not determine point cloud driver")
	ErrNeedsPDAL     = errors.New("point cloud source needs the pdal backend")
	ErrCompressed    = errors.New("compressed LAZ needs the pdal backend")
	ErrNotLas        = errors.New("not a LAS file")
	ErrLasVersion    = errors.New("unsupported LAS version")
	ErrPointFormat   = errors.New("unsupported LAS point record")
)

var sourceKinds = map[string]SourceKind{
	".las":    KindLas,
	".laz":    KindLas,
	".tiledb": KindTileDB,
	".tdb":    KindTileDB,
}

// 按后缀判断数据源类型
func KindOf(path string) (kind SourceKind, err error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimRight(path, `/\`)))
	kind, ok := sourceKinds[ext]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownSource, path)
	}
	return
}

// 打开点云供原生栅格化使用，仅支持未压缩的LAS
func Open(path string) (r density.PointReader, err error) {
	kind, err := KindOf(path)
	if err != nil {
		return
	}
	switch kind {
	case KindLas:
		r, err = OpenLas(path)
	default:
		err = fmt.Errorf("%w: %s (%s)", ErrNeedsPDAL, path, kind)
	}
	return
}
