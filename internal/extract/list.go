package extract

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultRecordSuffix 是缓存记录文件的扩展名。
const DefaultRecordSuffix = ".d"

// SkipFunc 在枚举时跳过无法读取的子目录时被调用。
type SkipFunc func(path string, err error)

// ListRecordFiles 递归列出 root 下以 suffix 结尾的普通文件，按 WalkDir 的字典序返回。
// 没有找到记录时返回空切片而不是错误，由调用方决定如何提示。
// root 本身不可读时返回错误；子目录不可读时跳过该目录并交给 onSkip（可为 nil）。
func ListRecordFiles(root, suffix string, onSkip SkipFunc) ([]string, error) {
	if suffix == "" {
		suffix = DefaultRecordSuffix
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", path, err)
			}
			if onSkip != nil {
				onSkip(path, err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
