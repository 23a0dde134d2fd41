// Package testutil 为测试构造缓存记录文件。编码逻辑与 cachefile 的解码相互独立，
// 便于测试发现两侧不一致的问题。
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/block"
)

const (
	unixEpochJulianDay = 2440588
	specUTC            = 1
)

// Writer 是大端字节构造器，与 datastream.Reader 对称。
type Writer struct {
	buf bytes.Buffer
}

// Bytes 返回已写入的内容。
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) U8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *Writer) I32(v int32) *Writer {
	return w.U32(uint32(v)) //nolint:gosec // two's complement
}

func (w *Writer) I64(v int64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v)) //nolint:gosec // two's complement
	w.buf.Write(b[:])
	return w
}

// Blob 写入长度前缀字节串。
func (w *Writer) Blob(p []byte) *Writer {
	w.U32(uint32(len(p))) //nolint:gosec // test fixtures are small
	w.buf.Write(p)
	return w
}

// Null 写入表示 null 的长度前缀。
func (w *Writer) Null() *Writer {
	return w.U32(0xFFFFFFFF)
}

// Raw 原样追加字节。
func (w *Writer) Raw(p []byte) *Writer {
	w.buf.Write(p)
	return w
}

// Timestamp 以 UTC 规格写入时间戳；t 为 nil 时只写无效标记。
func (w *Writer) Timestamp(t *time.Time, engineVersion uint32) *Writer {
	if t == nil {
		return w.Bool(false)
	}
	w.Bool(true)
	jd, msecs := JulianDay(*t)
	if engineVersion >= 13 {
		w.I64(jd)
	} else {
		w.U32(uint32(jd)) //nolint:gosec // modern dates fit
	}
	return w.U32(msecs).U8(specUTC)
}

// JulianDay 返回 t（按 UTC）对应的儒略日与当日毫秒数。
func JulianDay(t time.Time) (int64, uint32) {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := midnight.Unix() / 86400
	return days + unixEpochJulianDay, uint32(t.Sub(midnight) / time.Millisecond) //nolint:gosec // < 86400000
}

// Attr 是测试用属性项。
type Attr struct {
	ID    uint32
	Value []byte
}

// Record 描述一条待编码的记录。
type Record struct {
	Magic         uint32
	FormatVersion uint32
	EngineVersion uint32
	URL           string
	NullURL       bool
	Headers       [][2]string
	LastModified  *time.Time
	Expiration    *time.Time
	SaveToDisk    bool
	Attributes    []Attr
	Compressed    bool
	Body          []byte
}

// NewRecord 返回带合法魔数、格式版本 8、引擎版本 13 的记录。
func NewRecord(rawURL string, body []byte) Record {
	return Record{
		Magic:         0xE8,
		FormatVersion: 8,
		EngineVersion: 13,
		URL:           rawURL,
		SaveToDisk:    true,
		Body:          body,
	}
}

// EffectiveEngine 返回解码端应使用的引擎版本。
func (r Record) EffectiveEngine() uint32 {
	if r.FormatVersion > 7 && r.EngineVersion != 0 {
		return r.EngineVersion
	}
	return 13
}

// Encode 将记录编码为字节。
func (r Record) Encode(t testing.TB) []byte {
	t.Helper()

	w := &Writer{}
	w.U32(r.Magic).U32(r.FormatVersion)
	if r.FormatVersion > 7 {
		w.U32(r.EngineVersion)
	}
	engine := r.EffectiveEngine()

	if r.NullURL {
		w.Null()
	} else {
		w.Blob([]byte(r.URL))
	}
	w.U32(uint32(len(r.Headers))) //nolint:gosec // small
	for _, h := range r.Headers {
		w.Blob([]byte(h[0])).Blob([]byte(h[1]))
	}
	w.Timestamp(r.LastModified, engine)
	w.Timestamp(r.Expiration, engine)
	w.Bool(r.SaveToDisk)
	if engine >= 13 {
		w.U32(uint32(len(r.Attributes))) //nolint:gosec // small
		for _, a := range r.Attributes {
			w.U32(a.ID).Blob(a.Value)
		}
	}

	w.Bool(r.Compressed)
	if r.Compressed {
		blk, err := block.Compress(r.Body)
		if err != nil {
			t.Fatalf("compress body: %v", err)
		}
		w.Blob(blk)
	} else {
		w.Raw(r.Body)
	}
	return w.Bytes()
}

// WriteRecord 将记录写到 dir/name 并返回路径，必要时创建父目录。
func WriteRecord(t testing.TB, dir, name string, rec Record) string {
	t.Helper()
	return WriteFile(t, dir, name, rec.Encode(t))
}

// WriteFile 写入任意内容，用于构造非记录文件。
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("写入记录失败: %v", err)
	}
	return path
}
