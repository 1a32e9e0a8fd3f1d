package density

import (
	"errors"
	"fmt"
)

// 检查流程各阶段的错误类别，可通过errors.Is判断
var (
	ErrGridSpec       = errors.New("grid spec error")
	ErrRasterization  = errors.New("rasterization error")
	ErrReconciliation = errors.New("reconciliation error")
	ErrEvaluation     = errors.New("evaluation error")
	ErrVectorization  = errors.New("vectorization error")
	ErrPersistence    = errors.New("persistence error")
)

var (
	ErrCheckReused         = errors.New("density check already run")
	ErrNoCRS               = errors.New("reference raster has no CRS")
	ErrNoDataUndefined     = errors.New("reference raster no-data undefined for integer band")
	ErrRotatedGrid         = errors.New("rotated or south-up reference grids are not supported")
	ErrEmptyGrid           = errors.New("reference grid has no cells")
	ErrBadResolution       = errors.New("reference grid resolution must be positive")
	ErrSizeMismatch        = errors.New("count raster and reference raster sizes differ")
	ErrNoValidCells        = errors.New("no valid cells to evaluate")
	ErrBadMinimumCount     = errors.New("minimum count must be positive")
	ErrBadPercentage       = errors.New("minimum count percentage must be within [0,100]")
	ErrUndefinedSource     = errors.New("point cloud has no CRS")
	ErrMissingToolkit      = errors.New("density check needs a toolkit and a rasterizer")
	ErrBufferSize          = errors.New("buffer smaller than window")
	ErrWindowOutOfRange    = errors.New("window outside raster")
	ErrUnknownVectorFormat = errors.New("unknown vector format")
)

// 带阶段信息的错误，同时展开为错误类别与底层原因
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stageErr(stage string, kind, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Kind == kind {
		return err
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
