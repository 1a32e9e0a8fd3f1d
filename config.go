package pcdensity

import "github.com/wgdzlh/pcdensity/density"

const (
	GTIFF_DRIVER_NAME   = "GTiff"
	MEM_DRIVER_NAME     = "MEM"
	OGR_MEM_DRIVER_NAME = "Memory"
	GPKG_DRIVER_NAME    = "GPKG"
	SHP_DRIVER_NAME     = "ESRI Shapefile"
	GEOJSON_DRIVER_NAME = "GeoJSON"

	SHAPE_ENCODING  = "UTF-8"
	ENCODING_OPTION = "ENCODING=" + SHAPE_ENCODING
	UNIVERSAL_SRID  = 4326
	epsgPrefix      = "EPSG:"

	POLYGONIZE_8CONNECTED = "8CONNECTED=8"

	FIELD_ID    = "id"
	FIELD_CELLS = "cells"
	FIELD_VALUE = "value"

	REGIONS_LAYER = "low_density_pixels"

	// 展示用矢量的缓冲与简化距离（像元宽度倍数）
	MapBufferPixels = 5
	MapBufferSegs   = 8
)

// 计数栅格（临时文件）的创建选项
var countCreateOptions = []string{
	"TILED=YES",
	"BLOCKXSIZE=256",
	"BLOCKYSIZE=256",
	"SPARSE_OK=TRUE",
}

// 输出density.tif的创建选项
var densityExportOptions = []string{
	"COMPRESS=DEFLATE",
	"ZLEVEL=6",
	"TILED=YES",
	"BLOCKXSIZE=256",
	"BLOCKYSIZE=256",
	"PREDICTOR=2",
}

// 矢量格式对应的OGR驱动
var vectorDrivers = map[string]string{
	density.VectorFormatGPKG:    GPKG_DRIVER_NAME,
	density.VectorFormatShp:     SHP_DRIVER_NAME,
	density.VectorFormatGeoJSON: GEOJSON_DRIVER_NAME,
}
