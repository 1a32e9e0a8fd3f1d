package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_SHP = ".shp"
)

// shp附属文件后缀
var shpSidecarExts = []string{".shx", ".dbf", ".prj", ".cpg", ".qix"}

// 在parentPath下创建以uuid命名的子目录
func GetUniqSubDir(parentPath string) (path string, err error) {
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// 获取矢量文件及其实际存在的附属文件（shp需同时带上shx/dbf/prj等）
func GetVectorFileSet(path string) (files []string) {
	files = []string{path}
	if !strings.EqualFold(filepath.Ext(path), FILE_EXT_SHP) {
		return
	}
	prefix := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range shpSidecarExts {
		if _, err := os.Stat(prefix + ext); err == nil {
			files = append(files, prefix+ext)
		}
	}
	return
}
