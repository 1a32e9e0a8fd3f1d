package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wgdzlh/pcdensity/density"
)

func sampleResult() *density.CheckResult {
	return &density.CheckResult{
		TotalNodes:       12,
		FailedNodes:      2,
		PercentageFailed: 100.0 / 6,
		PercentagePassed: 100 - 100.0/6,
		Passed:           true,
		Histogram: density.Histogram{
			{Value: 0, Frequency: 0}, {Value: 1, Frequency: 2}, {Value: 2, Frequency: 0}, {Value: 3, Frequency: 0}, {Value: 4, Frequency: 0},
			{Value: 5, Frequency: 6}, {Value: 6, Frequency: 2}, {Value: 7, Frequency: 1}, {Value: 8, Frequency: 0}, {Value: 9, Frequency: 1},
		},
		LowDensityRegions: []density.Region{{ID: 1, Cells: 2}},
		Params:            density.CheckParameters{MinimumCount: 5, MinimumCountPercentage: 83},
		PointCloud:        "/data/survey.las",
		Reference:         "/data/grid.tif",
	}
}

func TestSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, sampleResult()))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Check passed: true\n2 / 12 failed\n"))
	assert.Contains(t, out, "83.3% of nodes were found to have a sounding count above 5. This is required to be 83% of all nodes")
	assert.Contains(t, out, "Histogram (density value, cells count)\n    0,        0\n    1,        2\n")
	assert.Contains(t, out, "    9,        1\n")

	res := sampleResult()
	res.Passed = false
	res.TotalNodes = 1234567
	res.PersistErr = errors.New("disk full")
	buf.Reset()
	require.NoError(t, Summary(&buf, res))
	assert.Contains(t, buf.String(), "Check passed: false\n2 / 1,234,567 failed\n")
	assert.Contains(t, buf.String(), "outputs not persisted: disk full")
}

func TestHistogramStats(t *testing.T) {
	s := HistogramStats(sampleResult().Histogram)
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.Equal(t, 5.0, s.Median)
	assert.Equal(t, 9, s.Max)
	assert.Greater(t, s.StdDev, 0.0)

	assert.Equal(t, Stats{}, HistogramStats(density.Histogram{{Value: 0, Frequency: 0}}))
	one := HistogramStats(density.Histogram{{Value: 0, Frequency: 0}, {Value: 1, Frequency: 0}, {Value: 2, Frequency: 1}})
	assert.Equal(t, Stats{Mean: 2, Median: 2, Max: 2}, one)
}

func TestDocument(t *testing.T) {
	res := sampleResult()
	res.Artifacts = density.Artifacts{Dir: "/out/survey/x", Density: "/out/survey/x/density.tif"}
	doc := NewDocument(res, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))

	b, err := doc.Marshal(FormatJSON)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, density.CheckID, m["check"].(map[string]any)["id"])
	assert.Equal(t, "2024-03-01T10:30:00.000000", m["generated"])
	assert.Equal(t, true, m["check_passed"])
	assert.Len(t, m["histogram"], 10)
	assert.NotContains(t, m, "persist_error")

	path := filepath.Join(t.TempDir(), "result.yaml")
	require.NoError(t, doc.Write(path, FormatYAML))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var back Document
	require.NoError(t, yaml.Unmarshal(raw, &back))
	assert.Equal(t, *doc, back)

	_, err = doc.Marshal("xml")
	assert.Error(t, err)
}

func TestSaveHistogramPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), PlotFileName)
	require.NoError(t, SaveHistogramPlot(path, sampleResult().Histogram, 5))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, SaveHistogramPlot(path, nil, 5))
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcdensity.prom")
	require.NoError(t, WriteMetrics(path, sampleResult()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `pcdensity_check_passed{point_cloud="/data/survey.las"} 1`)
	assert.Contains(t, text, `pcdensity_failed_nodes{point_cloud="/data/survey.las"} 2`)
	assert.Contains(t, text, `pcdensity_total_nodes{point_cloud="/data/survey.las"} 12`)
}
