package utils

import (
	"strconv"
	"strings"
	"time"
	"unsafe"
)

const TimeTagLayout = "2006-01-02T15:04:05.000000"

func B2S(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func StrToFloat(s string) (f float64, err error) {
	f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	return
}

func GetTimeTag(t time.Time) string {
	return t.Format(TimeTagLayout)
}

// 转为全小写并以下划线连接，用于生成目录名
func ToSnake(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}
