package density

// 直方图的一个单位宽度区间 [Value, Value+1)
type Bin struct {
	Value     int
	Frequency int64
}

// 有效格元计数的频数直方图，区间为0..max连续整数
type Histogram []Bin

func (h Histogram) Total() (n int64) {
	for _, b := range h {
		n += b.Frequency
	}
	return
}

// 计数小于limit的格元数
func (h Histogram) Below(limit int) (n int64) {
	for _, b := range h {
		if b.Value >= limit {
			break
		}
		n += b.Frequency
	}
	return
}

func (h Histogram) Max() int {
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1].Value
}

// 逐块统计合并后计数栅格的直方图，共maxCount+1个区间
// 无效值与超出[0,maxCount]的值不计入
func BuildHistogram(counts CountBand, maxCount int32) (h Histogram, err error) {
	if maxCount < 0 {
		maxCount = 0
	}
	freq := make([]int64, int(maxCount)+1)
	w, ht := counts.Size()
	bw, bh := counts.BlockSize()
	var buf []int32
	for _, win := range Blocks(w, ht, bw, bh) {
		n := win.Size()
		if cap(buf) < n {
			buf = make([]int32, n)
		}
		buf = buf[:n]
		if err = counts.Read(win, buf); err != nil {
			return
		}
		for _, v := range buf {
			if v < 0 || v > maxCount {
				continue
			}
			freq[v]++
		}
	}
	h = make(Histogram, len(freq))
	for i, f := range freq {
		h[i] = Bin{Value: i, Frequency: f}
	}
	return
}
