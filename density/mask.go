package density

// 低密度掩膜：有效且计数小于minimumCount的格元为1，无效值格元恒为0
func LowDensityMask(counts CountBand, minimumCount int) MaskFunc {
	var buf []int32
	limit := int64(minimumCount)
	return func(w Window, out []uint8) (err error) {
		n := w.Size()
		if len(out) < n {
			return ErrBufferSize
		}
		if cap(buf) < n {
			buf = make([]int32, n)
		}
		buf = buf[:n]
		if err = counts.Read(w, buf); err != nil {
			return
		}
		for i, v := range buf {
			if v >= 0 && v != CountNoData && int64(v) < limit {
				out[i] = 1
			} else {
				out[i] = 0
			}
		}
		return
	}
}
