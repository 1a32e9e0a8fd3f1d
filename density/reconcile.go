package density

import (
	"fmt"

	"github.com/wgdzlh/pcdensity/log"

	"go.uber.org/zap"
)

// 合并后的计数统计
type Reconciled struct {
	MaxCount   int32
	ValidCells int64
}

// 以参考栅格的无效值掩膜为准更新计数栅格（原地），并统计有效格元数与最大计数
// 参考栅格有效、计数栅格为无效（未落点）的格元记为0
func Reconcile(counts CountBand, ref ReferenceBand, nd NoData) (ret Reconciled, err error) {
	cw, ch := counts.Size()
	rw, rh := ref.Size()
	if cw != rw || ch != rh {
		err = fmt.Errorf("%w: counts %dx%d, reference %dx%d", ErrSizeMismatch, cw, ch, rw, rh)
		return
	}
	bw, bh := counts.BlockSize()
	var (
		cBuf    []int32
		rBuf    []float64
		v       int32
		blocks  = Blocks(cw, ch, bw, bh)
		masked  int64
		emptied int64
	)
	for _, w := range blocks {
		n := w.Size()
		if cap(cBuf) < n {
			cBuf = make([]int32, n)
			rBuf = make([]float64, n)
		}
		cBuf, rBuf = cBuf[:n], rBuf[:n]
		if err = counts.Read(w, cBuf); err != nil {
			return
		}
		if err = ref.Read(w, rBuf); err != nil {
			return
		}
		for i := range cBuf {
			if nd.Is(rBuf[i]) {
				if cBuf[i] > 0 {
					masked++
				}
				cBuf[i] = CountNoData
				continue
			}
			v = cBuf[i]
			if v < 0 {
				v = 0
				cBuf[i] = 0
				emptied++
			}
			ret.ValidCells++
			if v > ret.MaxCount {
				ret.MaxCount = v
			}
		}
		if err = counts.Write(w, cBuf); err != nil {
			return
		}
	}
	log.Info("Reconcile:counts merged with reference no-data",
		zap.Int64("validCells", ret.ValidCells), zap.Int32("maxCount", ret.MaxCount),
		zap.Int64("maskedWithPoints", masked), zap.Int64("emptyToZero", emptied), zap.Int("blocks", len(blocks)))
	return
}
