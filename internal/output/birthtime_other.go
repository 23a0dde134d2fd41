//go:build !windows

package output

import "time"

// setBirthTime 在不支持写入创建时间的平台上什么也不做。
func setBirthTime(string, time.Time) error {
	return nil
}
