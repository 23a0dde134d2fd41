package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
)

// ErrWriteFailed 表示正文无法落盘（目录创建、打开、写入或重命名失败）。
var ErrWriteFailed = errors.New("write failed")

// Writer 将解码后的正文写入 Plan 指定的位置。
type Writer struct {
	preserveTimes bool
}

// WriterOption 配置 Writer。
type WriterOption func(*Writer)

// WithPreserveTimes 控制是否把记录时间写回输出文件，默认开启。
func WithPreserveTimes(preserve bool) WriterOption {
	return func(w *Writer) {
		w.preserveTimes = preserve
	}
}

// NewWriter 创建 Writer。
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{preserveTimes: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write 创建父目录，经由同目录临时文件 + rename 写入正文，已有文件会被整体替换。
// 修改/创建时间按平台能力尽力设置，失败不视为错误。
func (w *Writer) Write(rec *cachefile.Record, plan Plan) error {
	if err := os.MkdirAll(plan.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %s: %v", ErrWriteFailed, plan.Dir, err)
	}

	tempFile, err := os.CreateTemp(plan.Dir, ".extract-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrWriteFailed, err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(rec.Body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempName, 0o644)
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("%w: write %s: %v", ErrWriteFailed, plan.Target, err)
	}

	if err := os.Rename(tempName, plan.Target); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("%w: rename to %s: %v", ErrWriteFailed, plan.Target, err)
	}

	if w.preserveTimes {
		w.applyTimes(rec, plan.Target)
	}
	return nil
}

func (w *Writer) applyTimes(rec *cachefile.Record, target string) {
	if mod := rec.FileModificationTime; !mod.IsZero() {
		_ = os.Chtimes(target, mod, mod)
	}
	if birth := rec.FileBirthTime; !birth.IsZero() {
		_ = setBirthTime(target, birth)
	}
}
