package report

import (
	"math"

	"github.com/wgdzlh/pcdensity/density"

	"gonum.org/v1/gonum/stat"
)

// 有效格元点密度的统计量
type Stats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Median float64 `json:"median" yaml:"median"`
	Max    int     `json:"max" yaml:"max"`
}

// 以频数为权重由直方图计算
func HistogramStats(h density.Histogram) (s Stats) {
	var (
		xs = make([]float64, 0, len(h))
		ws = make([]float64, 0, len(h))
	)
	for _, b := range h {
		if b.Frequency == 0 {
			continue
		}
		xs = append(xs, float64(b.Value))
		ws = append(ws, float64(b.Frequency))
		s.Max = b.Value
	}
	if len(xs) == 0 {
		return
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, ws)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, xs, ws)
	return
}
