// Package testutil 生成测试用的点云文件
package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
)

// 待写出的LAS 1.2文件，点格式0
type LasFile struct {
	X, Y, Z    []float64
	WKT        string // 写为LASF_Projection/2112
	EPSG       int    // 写为GeoKeyDirectory
	Scale      float64
	Compressed bool // 仅设置压缩标记
}

const (
	lasHeaderSize = 227
	vlrHeaderSize = 54
	format0Length = 20
)

func (l LasFile) Write(path string) error {
	return os.WriteFile(path, l.Bytes(), 0o644)
}

func (l LasFile) Bytes() []byte {
	scale := l.Scale
	if scale == 0 {
		scale = 0.01
	}
	var off [3]float64
	mins, maxs := [3]float64{}, [3]float64{}
	if len(l.X) > 0 {
		off = [3]float64{math.Floor(l.X[0]), math.Floor(l.Y[0]), 0}
		mins = [3]float64{l.X[0], l.Y[0], l.Z[0]}
		maxs = mins
	}
	for i := range l.X {
		for k, v := range [3]float64{l.X[i], l.Y[i], l.Z[i]} {
			mins[k] = math.Min(mins[k], v)
			maxs[k] = math.Max(maxs[k], v)
		}
	}

	var vlrs bytes.Buffer
	nVLR := 0
	if l.EPSG > 0 {
		// 40xx/43xx等按地理坐标系写入
		key := uint16(3072)
		if l.EPSG >= 4000 && l.EPSG < 5000 {
			key = 2048
		}
		keys := []uint16{1, 1, 0, 1, key, 0, 1, uint16(l.EPSG)}
		body := make([]byte, len(keys)*2)
		for i, k := range keys {
			binary.LittleEndian.PutUint16(body[i*2:], k)
		}
		writeVLR(&vlrs, 34735, body)
		nVLR++
	}
	if l.WKT != "" {
		writeVLR(&vlrs, 2112, append([]byte(l.WKT), 0))
		nVLR++
	}

	le := binary.LittleEndian
	h := make([]byte, lasHeaderSize)
	copy(h, "LASF")
	h[24], h[25] = 1, 2
	copy(h[26:], "pcdensity")
	le.PutUint16(h[94:], lasHeaderSize)
	le.PutUint32(h[96:], uint32(lasHeaderSize+vlrs.Len()))
	le.PutUint32(h[100:], uint32(nVLR))
	h[104] = 0
	if l.Compressed {
		h[104] |= 0x80
	}
	le.PutUint16(h[105:], format0Length)
	le.PutUint32(h[107:], uint32(len(l.X)))
	le.PutUint32(h[111:], uint32(len(l.X)))
	for k := 0; k < 3; k++ {
		le.PutUint64(h[131+8*k:], math.Float64bits(scale))
		le.PutUint64(h[155+8*k:], math.Float64bits(off[k]))
		le.PutUint64(h[179+16*k:], math.Float64bits(maxs[k]))
		le.PutUint64(h[187+16*k:], math.Float64bits(mins[k]))
	}

	var out bytes.Buffer
	out.Write(h)
	out.Write(vlrs.Bytes())
	rec := make([]byte, format0Length)
	for i := range l.X {
		clear(rec)
		le.PutUint32(rec[0:], uint32(int32(math.Round((l.X[i]-off[0])/scale))))
		le.PutUint32(rec[4:], uint32(int32(math.Round((l.Y[i]-off[1])/scale))))
		le.PutUint32(rec[8:], uint32(int32(math.Round((l.Z[i]-off[2])/scale))))
		rec[14] = 0x09 // 单次回波
		out.Write(rec)
	}
	return out.Bytes()
}

func writeVLR(w *bytes.Buffer, recordID uint16, body []byte) {
	vh := make([]byte, vlrHeaderSize)
	copy(vh[2:], "LASF_Projection")
	binary.LittleEndian.PutUint16(vh[18:], recordID)
	binary.LittleEndian.PutUint16(vh[20:], uint16(len(body)))
	w.Write(vh)
	w.Write(body)
}

// 在[x0,x0+res)等格元内部均匀生成点，rows自顶部起算
func GridPoints(x0, top, res float64, counts [][]int) (xs, ys, zs []float64) {
	for r, row := range counts {
		for c, n := range row {
			for k := 0; k < n; k++ {
				f := (float64(k) + 0.5) / float64(n)
				xs = append(xs, x0+(float64(c)+f)*res)
				ys = append(ys, top-(float64(r)+1-f)*res)
				zs = append(zs, -20-float64(k))
			}
		}
	}
	return
}
