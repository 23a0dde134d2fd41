//go:build linux

package cachefile

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime 通过 statx 读取创建时间，文件系统不支持时回退到修改时间。
func birthTime(path string, info fs.FileInfo) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}
