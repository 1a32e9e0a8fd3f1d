package report

import (
	"github.com/wgdzlh/pcdensity/density"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pcdensity"

// 将检查结果写为node exporter textfile格式
func WriteMetrics(path string, res *density.CheckResult) error {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"point_cloud": res.PointCloud}
	gauge := func(name, help string, v float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(v)
		reg.MustRegister(g)
	}
	passed := 0.0
	if res.Passed {
		passed = 1
	}
	gauge("check_passed", "Whether the density check passed.", passed)
	gauge("total_nodes", "Valid grid cells evaluated.", float64(res.TotalNodes))
	gauge("failed_nodes", "Valid grid cells below the minimum count.", float64(res.FailedNodes))
	gauge("percentage_passed", "Percentage of valid cells at or above the minimum count.", res.PercentagePassed)
	gauge("low_density_regions", "Connected low density regions.", float64(len(res.LowDensityRegions)))
	return prometheus.WriteToTextfile(path, reg)
}
