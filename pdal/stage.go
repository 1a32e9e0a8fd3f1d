// Package pdal 构建并执行生成计数栅格的PDAL管线
package pdal

import (
	"encoding/json"
	"fmt"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/pointcloud"
)

// 管线中的一个阶段，各阶段自行序列化
type Stage interface {
	json.Marshaler
	Type() string
}

type Pipeline []Stage

func (p Pipeline) MarshalJSON() ([]byte, error) {
	stages := make([]json.RawMessage, len(p))
	for i, s := range p {
		b, err := s.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, s.Type(), err)
		}
		stages[i] = b
	}
	return json.Marshal(stages)
}

// readers.las
type LasReader struct {
	Filename    string
	OverrideSRS string
}

func (LasReader) Type() string { return "readers.las" }

func (r LasReader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		Filename    string `json:"filename"`
		OverrideSRS string `json:"override_srs,omitempty"`
	}{r.Type(), r.Filename, r.OverrideSRS})
}

// readers.tiledb
type TileDBReader struct {
	ArrayName   string
	OverrideSRS string
}

func (TileDBReader) Type() string { return "readers.tiledb" }

func (r TileDBReader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		Strict      bool   `json:"strict"`
		ArrayName   string `json:"array_name"`
		OverrideSRS string `json:"override_srs,omitempty"`
	}{r.Type(), false, r.ArrayName, r.OverrideSRS})
}

// filters.reprojection
type Reprojection struct {
	OutSRS string
}

func (Reprojection) Type() string { return "filters.reprojection" }

func (f Reprojection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		OutSRS string `json:"out_srs"`
	}{f.Type(), f.OutSRS})
}

// writers.gdal，按格网输出点数统计，原点为左下角
type GdalWriter struct {
	Filename    string
	Resolution  float64
	OriginX     float64
	OriginY     float64
	Width       int
	Height      int
	OverrideSRS string
	GDALDriver  string
	GDALOpts    []string
}

const (
	writerDriver   = "GTiff"
	writerOutput   = "count"
	writerDataType = "int"
)

var writerOpts = []string{"TILED=YES", "BLOCKXSIZE=256", "BLOCKYSIZE=256"}

func (GdalWriter) Type() string { return "writers.gdal" }

func (w GdalWriter) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string   `json:"type"`
		BinMode     bool     `json:"binmode"`
		Filename    string   `json:"filename"`
		Resolution  float64  `json:"resolution"`
		OriginX     float64  `json:"origin_x"`
		OriginY     float64  `json:"origin_y"`
		Width       int      `json:"width"`
		Height      int      `json:"height"`
		OverrideSRS string   `json:"override_srs"`
		OutputType  string   `json:"output_type"`
		GDALDriver  string   `json:"gdaldriver"`
		GDALOpts    []string `json:"gdalopts"`
		NoData      int32    `json:"nodata"`
		DataType    string   `json:"data_type"`
	}{
		Type:        w.Type(),
		BinMode:     true,
		Filename:    w.Filename,
		Resolution:  w.Resolution,
		OriginX:     w.OriginX,
		OriginY:     w.OriginY,
		Width:       w.Width,
		Height:      w.Height,
		OverrideSRS: w.OverrideSRS,
		OutputType:  writerOutput,
		GDALDriver:  w.GDALDriver,
		GDALOpts:    w.GDALOpts,
		NoData:      density.CountNoData,
		DataType:    writerDataType,
	})
}

// 与格网对齐的写出阶段
func WriterFor(spec density.GridSpec, filename string) GdalWriter {
	return GdalWriter{
		Filename:    filename,
		Resolution:  spec.Resolution,
		OriginX:     spec.OriginX,
		OriginY:     spec.OriginY,
		Width:       spec.Width,
		Height:      spec.Height,
		OverrideSRS: spec.CRS,
		GDALDriver:  writerDriver,
		GDALOpts:    writerOpts,
	}
}

// 按数据源类型选择读取阶段
func ReaderFor(path, overrideSRS string) (s Stage, err error) {
	kind, err := pointcloud.KindOf(path)
	if err != nil {
		return
	}
	switch kind {
	case pointcloud.KindLas:
		s = LasReader{Filename: path, OverrideSRS: overrideSRS}
	case pointcloud.KindTileDB:
		s = TileDBReader{ArrayName: path, OverrideSRS: overrideSRS}
	default:
		err = fmt.Errorf("%w: %s", pointcloud.ErrUnknownSource, kind)
	}
	return
}

// 读取 -> 重投影至格网坐标系 -> 计数写出
func NewPipeline(pointCloud, overrideSRS string, spec density.GridSpec, out string) (p Pipeline, err error) {
	reader, err := ReaderFor(pointCloud, overrideSRS)
	if err != nil {
		return
	}
	p = Pipeline{reader, Reprojection{OutSRS: spec.CRS}, WriterFor(spec, out)}
	return
}
