//go:build !linux && !darwin && !windows

package cachefile

import (
	"io/fs"
	"time"
)

// birthTime 在无法获取创建时间的平台上回退到修改时间。
func birthTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}
