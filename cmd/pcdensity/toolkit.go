package main

import (
	"github.com/wgdzlh/pcdensity"
	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/internal/config"
	"github.com/wgdzlh/pcdensity/pdal"
	"github.com/wgdzlh/pcdensity/pointcloud"
	"github.com/wgdzlh/pcdensity/qajson"
)

func newRasterizer(b config.BackendConfig, tk density.Toolkit) density.Rasterizer {
	if b.Kind == config.BackendPDAL {
		return &pdal.Rasterizer{
			Toolkit:   tk,
			Command:   b.PdalCommand,
			SourceCRS: b.SourceCRS,
			Stream:    b.Stream,
		}
	}
	return &density.PointRasterizer{
		Toolkit:   tk,
		Open:      pointcloud.Open,
		SourceCRS: b.SourceCRS,
		BatchSize: b.BatchSize,
		MaxTiles:  b.MaxTiles,
	}
}

// 由配置生成检查公共选项，输入文件与参数由调用方填写；临时目录取自工具箱
func baseOptions(cfg *config.Config, tk *pcdensity.GdalToolbox) density.CheckOptions {
	return density.CheckOptions{
		Params:       cfg.Params(),
		OutputDir:    cfg.Output.Dir,
		VectorFormat: cfg.Output.VectorFormat,
		Toolkit:      tk,
		Rasterizer:   newRasterizer(cfg.Backend, tk),
	}
}

func mapFunc(tk *pcdensity.GdalToolbox) qajson.MapFunc {
	return func(spec density.GridSpec, regions []density.Region) (mapJSON, extents []byte, err error) {
		ml, err := tk.MapLayers(spec, regions)
		if err != nil {
			return
		}
		return ml.Map, ml.Extents, nil
	}
}
