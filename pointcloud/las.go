package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/wgdzlh/pcdensity/log"

	"go.uber.org/zap"
)

const (
	lasSignature     = "LASF"
	lasMinHeaderSize = 227
	vlrHeaderSize    = 54

	projectionUserID = "LASF_Projection"
	recordWKT        = 2112
	recordGeoKeys    = 34735

	geoKeyProjected  = 3072
	geoKeyGeographic = 2048
)

// LAS公共头中栅格化所需的字段
type LasHeader struct {
	VersionMajor uint8
	VersionMinor uint8
	HeaderSize   uint16
	PointOffset  uint32
	NumVLRs      uint32
	PointFormat  uint8
	RecordLength uint16
	PointCount   uint64
	Compressed   bool
	Scale        [3]float64
	Offset       [3]float64
	Min          [3]float64
	Max          [3]float64
	CRS          string // WKT或EPSG:n，未定义时为空
}

// 流式读取LAS点记录
type LasReader struct {
	f      *os.File
	r      *bufio.Reader
	header LasHeader
	rec    []byte
	left   uint64
	logTag string
}

func OpenLas(path string) (lr *LasReader, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()
	h, err := readLasHeader(f)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
		return
	}
	if h.Compressed {
		err = fmt.Errorf("%s: %w", path, ErrCompressed)
		return
	}
	if h.RecordLength < 12 {
		err = fmt.Errorf("%s: %w: record length %d", path, ErrPointFormat, h.RecordLength)
		return
	}
	if _, err = f.Seek(int64(h.PointOffset), io.SeekStart); err != nil {
		return
	}
	lr = &LasReader{
		f:      f,
		r:      bufio.NewReaderSize(f, 1<<20),
		header: h,
		rec:    make([]byte, h.RecordLength),
		left:   h.PointCount,
		logTag: "LasReader:",
	}
	log.Info(lr.logTag+"open las", zap.String("path", path), zap.String("version", fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)),
		zap.Uint8("pointFormat", h.PointFormat), zap.Uint64("points", h.PointCount), zap.Bool("hasCRS", h.CRS != ""))
	return
}

func (lr *LasReader) Header() LasHeader {
	return lr.header
}

func (lr *LasReader) CRS() string {
	return lr.header.CRS
}

// 读取至多len(xs)个点，读完时返回io.EOF
func (lr *LasReader) ReadPoints(xs, ys, zs []float64) (n int, err error) {
	h := &lr.header
	for n < len(xs) && lr.left > 0 {
		if _, err = io.ReadFull(lr.r, lr.rec); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			err = fmt.Errorf("read point record: %w (%d points left)", err, lr.left)
			return
		}
		xs[n] = float64(int32(binary.LittleEndian.Uint32(lr.rec[0:])))*h.Scale[0] + h.Offset[0]
		ys[n] = float64(int32(binary.LittleEndian.Uint32(lr.rec[4:])))*h.Scale[1] + h.Offset[1]
		if n < len(zs) {
			zs[n] = float64(int32(binary.LittleEndian.Uint32(lr.rec[8:])))*h.Scale[2] + h.Offset[2]
		}
		n++
		lr.left--
	}
	if lr.left == 0 {
		err = io.EOF
	}
	return
}

func (lr *LasReader) Close() error {
	return lr.f.Close()
}

func readLasHeader(f *os.File) (h LasHeader, err error) {
	buf := make([]byte, 375)
	n, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF && n >= lasMinHeaderSize {
		err = nil
	}
	if err != nil || string(buf[:4]) != lasSignature {
		err = ErrNotLas
		return
	}
	le := binary.LittleEndian
	h.VersionMajor, h.VersionMinor = buf[24], buf[25]
	if h.VersionMajor != 1 || h.VersionMinor > 4 {
		err = fmt.Errorf("%w: %d.%d", ErrLasVersion, h.VersionMajor, h.VersionMinor)
		return
	}
	h.HeaderSize = le.Uint16(buf[94:])
	h.PointOffset = le.Uint32(buf[96:])
	h.NumVLRs = le.Uint32(buf[100:])
	// LAZ压缩标记在点格式的高两位
	rawFormat := buf[104]
	h.Compressed = rawFormat&0xc0 != 0
	h.PointFormat = rawFormat & 0x3f
	h.RecordLength = le.Uint16(buf[105:])
	h.PointCount = uint64(le.Uint32(buf[107:]))
	for i := 0; i < 3; i++ {
		h.Scale[i] = math.Float64frombits(le.Uint64(buf[131+8*i:]))
		h.Offset[i] = math.Float64frombits(le.Uint64(buf[155+8*i:]))
		// 头中按 maxX,minX,maxY,minY,maxZ,minZ 排列
		h.Max[i] = math.Float64frombits(le.Uint64(buf[179+16*i:]))
		h.Min[i] = math.Float64frombits(le.Uint64(buf[187+16*i:]))
	}
	if h.VersionMinor >= 4 && h.HeaderSize >= 375 {
		if c := le.Uint64(buf[247:]); c > 0 {
			h.PointCount = c
		}
	}
	if h.HeaderSize < lasMinHeaderSize || h.PointOffset < uint32(h.HeaderSize) {
		err = fmt.Errorf("%w: header size %d, point offset %d", ErrNotLas, h.HeaderSize, h.PointOffset)
		return
	}
	h.CRS, err = readProjection(f, h)
	return
}

// 扫描VLR获取坐标系，OGC WKT优先于GeoKeys
func readProjection(f *os.File, h LasHeader) (crs string, err error) {
	if _, err = f.Seek(int64(h.HeaderSize), io.SeekStart); err != nil {
		return
	}
	r := bufio.NewReader(io.LimitReader(f, int64(h.PointOffset)-int64(h.HeaderSize)))
	vh := make([]byte, vlrHeaderSize)
	var epsg string
	for i := uint32(0); i < h.NumVLRs; i++ {
		if _, err = io.ReadFull(r, vh); err != nil {
			err = fmt.Errorf("read vlr %d: %w", i, err)
			return
		}
		userID := strings.TrimRight(string(vh[2:18]), "\x00")
		recordID := binary.LittleEndian.Uint16(vh[18:])
		body := make([]byte, binary.LittleEndian.Uint16(vh[20:]))
		if _, err = io.ReadFull(r, body); err != nil {
			err = fmt.Errorf("read vlr %d body: %w", i, err)
			return
		}
		if userID != projectionUserID {
			continue
		}
		switch recordID {
		case recordWKT:
			if wkt := strings.TrimRight(string(body), "\x00 "); wkt != "" {
				crs = wkt
				return
			}
		case recordGeoKeys:
			if code := geoKeysEPSG(body); code > 0 {
				epsg = "EPSG:" + strconv.Itoa(code)
			}
		}
	}
	crs = epsg
	return
}

// 解析GeoKeyDirectory，返回投影或地理坐标系的EPSG代码
func geoKeysEPSG(body []byte) (code int) {
	if len(body) < 8 {
		return
	}
	le := binary.LittleEndian
	keys := int(le.Uint16(body[6:]))
	var geographic int
	for i := 0; i < keys; i++ {
		off := 8 + i*8
		if off+8 > len(body) {
			break
		}
		id, loc, val := le.Uint16(body[off:]), le.Uint16(body[off+2:]), le.Uint16(body[off+6:])
		if loc != 0 || val == 0 || val == 32767 {
			continue
		}
		switch id {
		case geoKeyProjected:
			return int(val)
		case geoKeyGeographic:
			geographic = int(val)
		}
	}
	return geographic
}
