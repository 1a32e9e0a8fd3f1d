package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wgdzlh/pcdensity/density"
	"github.com/wgdzlh/pcdensity/utils"

	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"

	DocumentBaseName = "density-check"
)

// 文档文件名，如 density-check.yaml
func DocumentFileName(format string) string {
	return DocumentBaseName + "." + format
}

// 检查结果文档
type Document struct {
	Check      CheckInfo   `json:"check" yaml:"check"`
	Generated  string      `json:"generated" yaml:"generated"`
	Inputs     Inputs      `json:"inputs" yaml:"inputs"`
	Params     Params      `json:"params" yaml:"params"`
	Passed     bool        `json:"check_passed" yaml:"check_passed"`
	Summary    SummaryInfo `json:"summary" yaml:"summary"`
	Stats      Stats       `json:"stats" yaml:"stats"`
	Histogram  []BinInfo   `json:"histogram" yaml:"histogram"`
	Regions    int         `json:"low_density_regions" yaml:"low_density_regions"`
	Artifacts  *Artifacts  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	PersistErr string      `json:"persist_error,omitempty" yaml:"persist_error,omitempty"`
}

type CheckInfo struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

type Inputs struct {
	PointCloud string `json:"point_cloud" yaml:"point_cloud"`
	Grid       string `json:"grid" yaml:"grid"`
}

type Params struct {
	MinimumCount           int     `json:"minimum_count" yaml:"minimum_count"`
	MinimumCountPercentage float64 `json:"minimum_count_percentage" yaml:"minimum_count_percentage"`
}

type SummaryInfo struct {
	TotalNodes       int64   `json:"total_nodes" yaml:"total_nodes"`
	FailedNodes      int64   `json:"failed_nodes" yaml:"failed_nodes"`
	PercentagePassed float64 `json:"percentage_over_threshold" yaml:"percentage_over_threshold"`
	PercentageFailed float64 `json:"percentage_under_threshold" yaml:"percentage_under_threshold"`
}

type BinInfo struct {
	Value     int   `json:"value" yaml:"value"`
	Frequency int64 `json:"count" yaml:"count"`
}

type Artifacts struct {
	Dir     string `json:"dir" yaml:"dir"`
	Density string `json:"density,omitempty" yaml:"density,omitempty"`
	Regions string `json:"regions,omitempty" yaml:"regions,omitempty"`
	Plot    string `json:"plot,omitempty" yaml:"plot,omitempty"`
}

func NewDocument(res *density.CheckResult, generated time.Time) *Document {
	d := &Document{
		Check:     CheckInfo{ID: density.CheckID, Name: density.CheckName, Version: density.CheckVersion},
		Generated: utils.GetTimeTag(generated),
		Inputs:    Inputs{PointCloud: res.PointCloud, Grid: res.Reference},
		Params: Params{
			MinimumCount:           res.Params.MinimumCount,
			MinimumCountPercentage: res.Params.MinimumCountPercentage,
		},
		Passed: res.Passed,
		Summary: SummaryInfo{
			TotalNodes:       res.TotalNodes,
			FailedNodes:      res.FailedNodes,
			PercentagePassed: res.PercentagePassed,
			PercentageFailed: res.PercentageFailed,
		},
		Stats:     HistogramStats(res.Histogram),
		Histogram: make([]BinInfo, len(res.Histogram)),
		Regions:   len(res.LowDensityRegions),
	}
	for i, b := range res.Histogram {
		d.Histogram[i] = BinInfo{Value: b.Value, Frequency: b.Frequency}
	}
	if res.Artifacts.Dir != "" {
		d.Artifacts = &Artifacts{Dir: res.Artifacts.Dir, Density: res.Artifacts.Density, Regions: res.Artifacts.Regions}
	}
	if res.PersistErr != nil {
		d.PersistErr = res.PersistErr.Error()
	}
	return d
}

func (d *Document) Marshal(format string) (b []byte, err error) {
	switch format {
	case FormatYAML:
		b, err = yaml.Marshal(d)
	case FormatJSON:
		b, err = json.MarshalIndent(d, "", "  ")
	default:
		err = fmt.Errorf("unknown document format %q", format)
	}
	return
}

func (d *Document) Write(path, format string) (err error) {
	b, err := d.Marshal(format)
	if err != nil {
		return
	}
	err = os.WriteFile(path, b, 0o644)
	return
}
