package version

import (
	"fmt"
	"runtime"
)

// Version/Commit/BuildDate 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version   = "0.1.0"
	Commit    = "dev"
	BuildDate = "unknown"
)

// Name 是命令行工具名称。
const Name = "diskcache-extract"

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s, built %s, %s)", Name, Version, Commit, BuildDate, runtime.Version())
}

// Short 返回写入报告的版本标识。
func Short() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}
