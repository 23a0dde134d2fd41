// Package datastream 提供对缓存记录文件的顺序大端读取能力。所有多字节整数均按
// big-endian 解码，长度前缀字节串使用 0xFFFFFFFF 表示 null（与空串区分）。
package datastream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// NullLength 是长度前缀字节串中表示 null 的保留值。
const NullLength = 0xFFFFFFFF

// ErrTruncated 表示剩余字节不足以完成一次读取。
var ErrTruncated = errors.New("truncated input")

// Reader 在内存字节切片上顺序读取，只推进游标，不修改数据。
type Reader struct {
	buf []byte
	off int
}

// NewReader 基于 data 构建读取器，调用方不应在读取期间修改 data。
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Offset 返回当前游标位置。
func (r *Reader) Offset() int {
	return r.off
}

// Remaining 返回尚未读取的字节数。
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// AtEnd 表示所有字节均已读取。
func (r *Reader) AtEnd() bool {
	return r.off >= len(r.buf)
}

// RemainingBytes 返回剩余全部字节并将游标移到末尾。
func (r *Reader) RemainingBytes() []byte {
	rest := r.buf[r.off:]
	r.off = len(r.buf)
	return rest
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Remaining())
	}
	p := r.buf[r.off : r.off+n]
	r.off += n
	return p, nil
}

// ReadU8 读取单字节无符号整数。
func (r *Reader) ReadU8() (uint8, error) {
	p, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadBool 读取单字节布尔值，非零即为 true。
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadU32 读取 4 字节大端无符号整数。
func (r *Reader) ReadU32() (uint32, error) {
	p, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

// ReadI32 读取 4 字节大端有符号整数。
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err //nolint:gosec // two's complement reinterpretation
}

// ReadU64 读取 8 字节大端无符号整数。
func (r *Reader) ReadU64() (uint64, error) {
	p, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

// ReadI64 读取 8 字节大端有符号整数。
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err //nolint:gosec // two's complement reinterpretation
}

// ReadBytes 读取长度前缀字节串。长度为 NullLength 时返回 nil（null），
// 长度为 0 时返回非 nil 的空切片。返回值为底层缓冲区的拷贝。
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == NullLength {
		return nil, nil
	}
	if uint64(n) > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: byte string of %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Remaining())
	}
	p, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}
