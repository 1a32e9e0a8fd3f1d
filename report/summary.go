// Package report 输出检查结果：终端摘要、结果文档、直方图与指标
package report

import (
	"fmt"
	"io"

	"github.com/wgdzlh/pcdensity/density"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 与QA JSON一致的结果说明
func Message(res *density.CheckResult) string {
	return fmt.Sprintf("%.1f%% of nodes were found to have a sounding count above %d. This is required to be %v%% of all nodes",
		res.PercentagePassed, res.Params.MinimumCount, res.Params.MinimumCountPercentage)
}

// 打印检查摘要：是否通过、失败格元数与直方图
func Summary(w io.Writer, res *density.CheckResult) (err error) {
	var (
		p     = message.NewPrinter(language.English)
		green = color.New(color.FgGreen, color.Bold).SprintFunc()
		red   = color.New(color.FgRed, color.Bold).SprintFunc()
		gray  = color.New(color.FgHiBlack).SprintFunc()
	)
	state := green("true")
	if !res.Passed {
		state = red("false")
	}
	if _, err = fmt.Fprintf(w, "Check passed: %s\n", state); err != nil {
		return
	}
	if _, err = p.Fprintf(w, "%d / %d failed\n", res.FailedNodes, res.TotalNodes); err != nil {
		return
	}
	if _, err = fmt.Fprintln(w, gray(Message(res))); err != nil {
		return
	}
	if _, err = fmt.Fprintln(w, "Histogram (density value, cells count)"); err != nil {
		return
	}
	for _, b := range res.Histogram {
		if _, err = p.Fprintf(w, "  %3d, %8d\n", b.Value, b.Frequency); err != nil {
			return
		}
	}
	if res.PersistErr != nil {
		_, err = fmt.Fprintf(w, "%s %v\n", red("outputs not persisted:"), res.PersistErr)
	} else if res.Artifacts.Dir != "" {
		_, err = fmt.Fprintf(w, "Outputs: %s\n", res.Artifacts.Dir)
	}
	return
}
