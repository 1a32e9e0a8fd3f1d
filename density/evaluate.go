package density

import "fmt"

// 检查参数
type CheckParameters struct {
	MinimumCount           int
	MinimumCountPercentage float64
}

func (p CheckParameters) Validate() error {
	if p.MinimumCount <= 0 {
		return fmt.Errorf("%w: %d", ErrBadMinimumCount, p.MinimumCount)
	}
	if !(p.MinimumCountPercentage >= 0 && p.MinimumCountPercentage <= 100) {
		return fmt.Errorf("%w: %v", ErrBadPercentage, p.MinimumCountPercentage)
	}
	return nil
}

// 判定结果
type Evaluation struct {
	TotalNodes       int64
	FailedNodes      int64
	PercentageFailed float64
	PercentagePassed float64
	Passed           bool
}

// 按阈值判定：计数低于MinimumCount的格元为失败，通过率须严格大于MinimumCountPercentage
func Evaluate(h Histogram, totalValid int64, p CheckParameters) (ev Evaluation, err error) {
	if totalValid <= 0 {
		err = ErrNoValidCells
		return
	}
	ev.TotalNodes = totalValid
	ev.FailedNodes = h.Below(p.MinimumCount)
	ev.PercentageFailed = float64(ev.FailedNodes) / float64(totalValid) * 100
	ev.PercentagePassed = 100 - ev.PercentageFailed
	ev.Passed = ev.PercentagePassed > p.MinimumCountPercentage
	return
}
