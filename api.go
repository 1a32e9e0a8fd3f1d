package pcdensity

import "encoding/json"

type AnyJson = json.RawMessage

type GdalGeo = []byte

// 供地图展示的低密度区域与格网范围（EPSG:4326 MultiPolygon GeoJSON）
type MapLayers struct {
	Map     AnyJson
	Extents AnyJson
}
