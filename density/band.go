package density

import "context"

// 计数栅格中的无效值
const CountNoData int32 = -9999

// 按窗口读写的计数栅格波段
type CountBand interface {
	Size() (width, height int)
	BlockSize() (width, height int)
	Read(w Window, buf []int32) error
	Write(w Window, buf []int32) error
}

// 参考栅格波段，只读
type ReferenceBand interface {
	Size() (width, height int)
	BlockSize() (width, height int)
	Read(w Window, buf []float64) error
}

// 已打开的参考栅格
type Reference interface {
	ReferenceBand
	GridSpec() GridSpec
	Close() error
}

// 磁盘上的计数栅格（临时文件）
type CountRaster interface {
	CountBand
	Path() string
	Close() error
}

// 将一批点坐标原地转换至目标坐标系
type Reprojector interface {
	Reproject(xs, ys, zs []float64) error
	Close()
}

// 按窗口填充掩膜：1为待矢量化像元，0为其他
type MaskFunc func(w Window, buf []uint8) error

// 低密度区域矢量（WKB），坐标系同参考栅格
type Region struct {
	ID    int
	Cells int
	Geom  []byte
}

// 栅格/矢量读写能力，由GDAL工具箱实现
type Toolkit interface {
	OpenReference(path string) (Reference, error)
	CreateCountRaster(path string, spec GridSpec) (CountRaster, error)
	OpenCountRaster(path string) (CountRaster, error)
	NewReprojector(srcCRS string, spec GridSpec) (Reprojector, error)
	Vectorize(spec GridSpec, blockW, blockH int, fill MaskFunc) ([]Region, error)
	ExportDensity(src CountRaster, path string) error
	WriteRegions(path, format string, spec GridSpec, regions []Region) error
}

// 可提供临时目录的工具箱，CheckOptions.TempDir为空时使用
type TempDirProvider interface {
	TempDir() string
}

// 由点云生成与参考格网对齐的计数栅格
type Rasterizer interface {
	Rasterize(ctx context.Context, pointCloud string, spec GridSpec, scratchDir string) (CountRaster, error)
}
