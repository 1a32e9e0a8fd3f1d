package report

import (
	"errors"
	"image/color"
	"strconv"

	"github.com/wgdzlh/pcdensity/density"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const PlotFileName = "density-histogram.png"

var (
	failColor = color.RGBA{R: 200, G: 60, B: 50, A: 255}
	passColor = color.RGBA{R: 60, G: 120, B: 200, A: 255}
)

// 保存直方图PNG，低于minimumCount的区间以红色显示
func SaveHistogramPlot(path string, h density.Histogram, minimumCount int) (err error) {
	if len(h) == 0 {
		return errors.New("empty histogram")
	}
	p := plot.New()
	p.Title.Text = "Point density"
	p.X.Label.Text = "points per cell"
	p.Y.Label.Text = "cells"

	var (
		below = make(plotter.Values, len(h))
		above = make(plotter.Values, len(h))
		names = make([]string, len(h))
		step  = len(h)/20 + 1
	)
	for i, b := range h {
		if b.Value < minimumCount {
			below[i] = float64(b.Frequency)
		} else {
			above[i] = float64(b.Frequency)
		}
		if i%step == 0 {
			names[i] = strconv.Itoa(b.Value)
		}
	}
	width := vg.Points(float64(360) / float64(len(h)))
	for _, s := range []struct {
		vs plotter.Values
		c  color.Color
	}{{below, failColor}, {above, passColor}} {
		bars, e := plotter.NewBarChart(s.vs, width)
		if e != nil {
			return e
		}
		bars.Color = s.c
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.NominalX(names...)
	err = p.Save(8*vg.Inch, 4*vg.Inch, path)
	return
}
