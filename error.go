package pcdensity

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrGdalWrongGeoType = errors.New("gdal wrong geo type")
	ErrEmptyCRS         = errors.New("empty crs definition")
	ErrInvalidCRS       = errors.New("invalid crs definition")
	ErrInvalidTif       = errors.New("invalid tif")
	ErrEmptyTif         = errors.New("tif has no band")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")
	ErrTransformFailed  = errors.New("coordinate transform failed")
	ErrPolygonize       = errors.New("polygonize failed")
)
