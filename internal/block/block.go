// Package block 解码缓存记录中的压缩块：4 字节大端原始长度 + 压缩流。
// 压缩流既可以是带 RFC 1950 头的 zlib 流（qCompress 的输出），也可以是裸 deflate 流。
package block

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

const (
	// HeaderSize 是块头中原始长度字段的字节数。
	HeaderSize = 4

	// DefaultMaxSize 是单个块解压后的默认上限（1GiB）。
	DefaultMaxSize = 1 << 30

	// preallocLimit 限制按声明长度预分配的内存，声明值不可信。
	preallocLimit = 64 << 20
)

var (
	// ErrDecompression 表示压缩块损坏、缺少头部或超过上限。
	ErrDecompression = errors.New("decompression failed")

	// ErrSizeMismatch 仅在 Strict 模式下作为 ErrDecompression 的细分原因出现。
	ErrSizeMismatch = errors.New("decompressed size mismatch")
)

// Result 是一次解压的结果。DeclaredSize 为块头声明的原始长度。
type Result struct {
	Data         []byte
	DeclaredSize uint32
}

// SizeMismatch 表示实际解压长度与块头声明不一致。
func (r Result) SizeMismatch() bool {
	return uint64(len(r.Data)) != uint64(r.DeclaredSize)
}

// Warning 返回长度不一致时的可读提示，一致时返回空串。
func (r Result) Warning() string {
	if !r.SizeMismatch() {
		return ""
	}
	return fmt.Sprintf("block declares %d bytes but decompressed to %d", r.DeclaredSize, len(r.Data))
}

// Decompressor 按配置解压块，零值不可用，请使用 New。
type Decompressor struct {
	strict  bool
	maxSize uint64
}

// Option 配置 Decompressor。
type Option func(*Decompressor)

// WithStrict 为 true 时长度不一致直接视为解压失败。
func WithStrict(strict bool) Option {
	return func(d *Decompressor) {
		d.strict = strict
	}
}

// WithMaxSize 限制解压后的最大字节数，0 表示不限制。
func WithMaxSize(limit uint64) Option {
	return func(d *Decompressor) {
		d.maxSize = limit
	}
}

// New 创建解压器，默认非严格模式、上限 DefaultMaxSize。
func New(opts ...Option) *Decompressor {
	d := &Decompressor{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompress 解码一个完整的块（含 4 字节长度头）。
func (d *Decompressor) Decompress(data []byte) (Result, error) {
	if len(data) < HeaderSize {
		return Result{}, fmt.Errorf("%w: block of %d bytes has no size header", ErrDecompression, len(data))
	}
	declared := binary.BigEndian.Uint32(data[:HeaderSize])
	stream := data[HeaderSize:]

	if d.maxSize > 0 && uint64(declared) > d.maxSize {
		return Result{}, fmt.Errorf("%w: declared size %d exceeds limit %d", ErrDecompression, declared, d.maxSize)
	}
	if len(stream) == 0 {
		if declared == 0 {
			return Result{Data: []byte{}, DeclaredSize: 0}, nil
		}
		return Result{}, fmt.Errorf("%w: empty stream for %d declared bytes", ErrDecompression, declared)
	}

	src, err := newStreamReader(stream)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer src.Close()

	var reader io.Reader = src
	if d.maxSize > 0 && d.maxSize < math.MaxInt64 {
		reader = io.LimitReader(src, int64(d.maxSize)+1)
	}

	var buf bytes.Buffer
	buf.Grow(int(min(uint64(declared), preallocLimit)))
	if _, err := buf.ReadFrom(reader); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if d.maxSize > 0 && uint64(buf.Len()) > d.maxSize {
		return Result{}, fmt.Errorf("%w: output exceeds limit %d", ErrDecompression, d.maxSize)
	}

	res := Result{Data: buf.Bytes(), DeclaredSize: declared}
	if d.strict && res.SizeMismatch() {
		return Result{}, fmt.Errorf("%w: %w: %s", ErrDecompression, ErrSizeMismatch, res.Warning())
	}
	return res, nil
}

// Decompress 使用默认配置解压。
func Decompress(data []byte) (Result, error) {
	return New().Decompress(data)
}

// Compress 生成与 Decompress 对应的块：长度头 + zlib 流。
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data))) //nolint:gosec // record bodies are < 4GiB by format
	buf.Write(header[:])

	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress block: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress block: %w", err)
	}
	return buf.Bytes(), nil
}

// newStreamReader 根据流头选择 zlib 或裸 deflate 解码器。
func newStreamReader(stream []byte) (io.ReadCloser, error) {
	if hasZlibHeader(stream) {
		return zlib.NewReader(bytes.NewReader(stream))
	}
	return flate.NewReader(bytes.NewReader(stream)), nil
}

// hasZlibHeader 校验 RFC 1950 的 CMF/FLG：deflate 方法且校验位可被 31 整除。
func hasZlibHeader(p []byte) bool {
	if len(p) < 2 {
		return false
	}
	cmf, flg := p[0], p[1]
	if cmf&0x0F != 8 || cmf>>4 > 7 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}
