package density

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenarioCheck(t *testing.T, counts [][]int32, ref *memRef, p CheckParameters) (*Check, *memToolkit, *fixedRasterizer) {
	tk := &memToolkit{ref: ref}
	r := &fixedRasterizer{tk: tk, counts: counts}
	c := NewCheck(CheckOptions{
		Params:     p,
		PointCloud: "/data/survey.las",
		Reference:  "/data/grid.tif",
		Vectorize:  true,
		TempDir:    t.TempDir(),
		Toolkit:    tk,
		Rasterizer: r,
	})
	return c, tk, r
}

func TestCheckPasses(t *testing.T) {
	spec := testSpec(3, 4)
	c, tk, _ := newScenarioCheck(t, scenario, validRef(spec), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	assert.Equal(t, StateCreated, c.State())

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, c.State())
	assert.Same(t, res, c.Result())
	assert.Nil(t, c.Err())

	assert.Equal(t, int64(12), res.TotalNodes)
	assert.Equal(t, int64(2), res.FailedNodes)
	assert.InDelta(t, 83.3333, res.PercentagePassed, 1e-3)
	assert.True(t, res.Passed)
	assert.Len(t, res.Histogram, 10)
	assert.Equal(t, spec, res.Grid)
	// 左上角两个相邻低密度格元构成一个区域
	require.Len(t, res.LowDensityRegions, 1)
	assert.Equal(t, 2, res.LowDensityRegions[0].Cells)
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, tk.exported)
	assert.True(t, tk.ref.closed)
	assert.True(t, tk.created[0].closed)
}

func TestCheckFailsHigherThreshold(t *testing.T) {
	c, _, _ := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 84})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, int64(2), res.FailedNodes)
}

func TestCheckExcludesReferenceNoData(t *testing.T) {
	spec := testSpec(3, 4)
	ref := validRef(spec)
	ref.data[3*3+2] = -9999
	c, _, _ := newScenarioCheck(t, scenario, ref, CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.TotalNodes)
	assert.Equal(t, int64(2), res.FailedNodes)
	assert.Len(t, res.Histogram, 8)
	assert.False(t, res.Passed)
}

func TestCheckNoLowDensity(t *testing.T) {
	counts := [][]int32{{5, 6}, {7, 5}}
	c, _, _ := newScenarioCheck(t, counts, validRef(testSpec(2, 2)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 95})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.FailedNodes)
	assert.Equal(t, 100.0, res.PercentagePassed)
	assert.True(t, res.Passed)
	assert.NotNil(t, res.LowDensityRegions)
	assert.Empty(t, res.LowDensityRegions)
}

// 超出int32的最小计数：所有有效格元均失败，低密度区域须覆盖全部格元
func TestCheckLargeMinimumCount(t *testing.T) {
	c, tk, _ := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 1 << 32, MinimumCountPercentage: 50})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.FailedNodes)
	assert.False(t, res.Passed)
	require.Len(t, res.LowDensityRegions, 1)
	assert.Equal(t, 12, res.LowDensityRegions[0].Cells)
	require.Len(t, tk.vectorized, 1)
	for _, v := range tk.vectorized[0] {
		assert.Equal(t, uint8(1), v)
	}
}

func TestCheckIdempotent(t *testing.T) {
	p := CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83}
	spec := testSpec(3, 4)
	c1, _, _ := newScenarioCheck(t, scenario, validRef(spec), p)
	c2, _, _ := newScenarioCheck(t, scenario, validRef(spec), p)
	r1, err := c1.Run(context.Background())
	require.NoError(t, err)
	r2, err := c2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestCheckSingleUse(t *testing.T) {
	c, _, r := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	_, err := c.Run(context.Background())
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	assert.ErrorIs(t, err, ErrCheckReused)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, StateCompleted, c.State())
}

func TestCheckStageErrors(t *testing.T) {
	boom := errors.New("boom")
	p := CheckParameters{MinimumCount: 5, MinimumCountPercentage: 95}

	t.Run("grid spec", func(t *testing.T) {
		c, tk, r := newScenarioCheck(t, scenario, nil, p)
		tk.refErr = boom
		res, err := c.Run(context.Background())
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrGridSpec)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, r.calls)
		assert.Equal(t, StateFailed, c.State())
		assert.Nil(t, c.Result())
		assert.Equal(t, err, c.Err())
	})
	t.Run("rasterize", func(t *testing.T) {
		c, _, r := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), p)
		r.err = boom
		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrRasterization)
		assert.ErrorIs(t, err, boom)
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, stageRasterize, se.Stage)
	})
	t.Run("reconcile", func(t *testing.T) {
		c, _, _ := newScenarioCheck(t, scenario, validRef(testSpec(4, 3)), p)
		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrReconciliation)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
	t.Run("no valid cells", func(t *testing.T) {
		spec := testSpec(2, 1)
		ref := refFrom(spec, [][]float64{{-9999, -9999}}, 2, 2)
		c, _, _ := newScenarioCheck(t, [][]int32{{3, 4}}, ref, p)
		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrEvaluation)
		assert.ErrorIs(t, err, ErrNoValidCells)
	})
	t.Run("parameters", func(t *testing.T) {
		c, _, r := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 0, MinimumCountPercentage: 95})
		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrEvaluation)
		assert.ErrorIs(t, err, ErrBadMinimumCount)
		assert.Zero(t, r.calls)
	})
	t.Run("missing toolkit", func(t *testing.T) {
		_, err := NewCheck(CheckOptions{Params: p}).Run(context.Background())
		assert.ErrorIs(t, err, ErrMissingToolkit)
	})
}

func TestCheckPersists(t *testing.T) {
	out := t.TempDir()
	c, tk, _ := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	c.opts.OutputDir = out
	c.opts.Vectorize = false

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.PersistErr)
	dir := filepath.Join(out, "survey", CheckDirName)
	assert.Equal(t, Artifacts{
		Dir:     dir,
		Density: filepath.Join(dir, DensityFileName),
		Regions: filepath.Join(dir, RegionsBaseName+".gpkg"),
	}, res.Artifacts)
	assert.Equal(t, []string{res.Artifacts.Density}, tk.exported)
	assert.Equal(t, []string{res.Artifacts.Regions}, tk.written)
	assert.DirExists(t, dir)
	assert.Len(t, res.LowDensityRegions, 1)
}

func TestCheckPersistFailureKeepsResult(t *testing.T) {
	boom := errors.New("disk full")
	c, tk, _ := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	c.opts.OutputDir = t.TempDir()
	tk.exportErr = boom

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.ErrorIs(t, res.PersistErr, ErrPersistence)
	assert.ErrorIs(t, res.PersistErr, boom)
	assert.Empty(t, res.Artifacts.Density)
	assert.Empty(t, tk.written)
	assert.Equal(t, StateCompleted, c.State())
}

func TestCheckUnknownVectorFormat(t *testing.T) {
	c, _, r := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	c.opts.OutputDir = t.TempDir()
	c.opts.VectorFormat = "kml"
	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnknownVectorFormat)
	assert.Zero(t, r.calls)
}

func TestCheckRemovesScratch(t *testing.T) {
	tmp := t.TempDir()
	c, _, _ := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	c.opts.TempDir = tmp
	_, err := c.Run(context.Background())
	require.NoError(t, err)
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckToolkitTempDir(t *testing.T) {
	tmp := t.TempDir()
	c, tk, r := newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	c.opts.TempDir = ""
	tk.tempDir = tmp
	_, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tmp, filepath.Dir(r.scratch))
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 显式指定的临时目录优先
	explicit := t.TempDir()
	c, tk, r = newScenarioCheck(t, scenario, validRef(testSpec(3, 4)), CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83})
	c.opts.TempDir = explicit
	tk.tempDir = tmp
	_, err = c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, explicit, filepath.Dir(r.scratch))
}

func TestVectorExt(t *testing.T) {
	ext, err := VectorExt(VectorFormatShp)
	require.NoError(t, err)
	assert.Equal(t, ".shp", ext)
	_, err = VectorExt("dxf")
	assert.ErrorIs(t, err, ErrUnknownVectorFormat)
	assert.Equal(t, "/out/a/"+CheckDirName, ArtifactDir("/out", "/in/a.laz"))
}
