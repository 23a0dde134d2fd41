package config

import (
	"errors"
	"math"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动提取。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("LogLevel", "无法识别的日志级别: "+g.LogLevel)
	}
	if g.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}

	e := c.Extract
	if strings.TrimSpace(e.CacheDirectory) == "" {
		return newFieldError("CacheDirectory", "不能为空")
	}
	if strings.TrimSpace(e.OutputDirectory) == "" {
		return newFieldError("OutputDirectory", "不能为空")
	}
	if samePath(e.CacheDirectory, e.OutputDirectory) {
		return newFieldError("OutputDirectory", "不能与 CacheDirectory 相同")
	}
	if e.RecordSuffix == "" {
		return newFieldError("RecordSuffix", "不能为空")
	}
	if strings.ContainsAny(e.RecordSuffix, `/\`) {
		return newFieldError("RecordSuffix", "不能包含路径分隔符")
	}
	if e.MaxBlockSize <= 0 {
		return newFieldError("MaxBlockSize", "必须大于 0")
	}
	if e.MaxBlockSize > math.MaxUint32 {
		return newFieldError("MaxBlockSize", "不能超过块头可声明的 4GiB")
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
