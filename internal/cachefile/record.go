// Package cachefile 解码磁盘缓存中的 *.d 记录文件。记录布局（大端）：
//
//	u32   magic (0xE8)
//	u32   formatVersion
//	u32?  engineVersion   # 仅当 formatVersion > 7
//	...   metadata        # 见 DecodeMetadata
//	bool  compressed
//	...   body            # 压缩时为长度前缀块，否则为文件剩余全部字节
//
// 解码要么产出完整的 Record，要么返回错误，不存在半成品记录。
package cachefile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/block"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/datastream"
)

const (
	// MagicNumber 是记录文件开头的固定标识。
	MagicNumber = 0xE8

	// DefaultEngineVersion 是记录未携带引擎版本时使用的回退值。
	DefaultEngineVersion = 13

	// engineVersionSince 之后的格式版本在版本号后追加引擎版本字段。
	engineVersionSince = 7
)

var (
	// ErrInvalidMagic 表示文件不是缓存记录（魔数不符或不足 4 字节）。
	ErrInvalidMagic = errors.New("invalid cache magic number")

	// ErrTruncatedInput 表示记录在结构中途被截断。
	ErrTruncatedInput = datastream.ErrTruncated

	// ErrDecompression 表示压缩正文无法解码。
	ErrDecompression = block.ErrDecompression
)

// Record 是一份完整解码的记录文件。
type Record struct {
	SourcePath    string
	MagicNumber   uint32
	FormatVersion uint32
	EngineVersion uint32
	Compressed    bool
	Body          []byte
	Metadata      Metadata

	// FileModificationTime 默认取自记录文件自身，元数据中 LastModified 有效时被其覆盖。
	FileModificationTime time.Time
	FileBirthTime        time.Time

	// Warnings 收集不影响解码结果的问题，例如压缩块长度与声明不符。
	Warnings []string
}

// Source 描述记录文件的来源与文件系统时间。
type Source struct {
	Path      string
	ModTime   time.Time
	BirthTime time.Time
}

// Decoder 解码记录文件，可安全复用。
type Decoder struct {
	blocks *block.Decompressor
}

// Option 配置 Decoder。
type Option func(*Decoder)

// WithDecompressor 替换压缩正文使用的解压器（严格模式、上限等）。
func WithDecompressor(d *block.Decompressor) Option {
	return func(dec *Decoder) {
		if d != nil {
			dec.blocks = d
		}
	}
}

// NewDecoder 创建解码器，默认使用 block.New()。
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{blocks: block.New()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeFile 读取 path 并解码。文件时间在解码前采集。
func (d *Decoder) DecodeFile(path string) (*Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat record: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	src := Source{
		Path:      path,
		ModTime:   info.ModTime(),
		BirthTime: birthTime(path, info),
	}
	return d.Decode(src, data)
}

// Decode 按 ReadMagic → ReadVersion → [ReadEngineVersion] → ReadMetadata →
// ReadCompressionFlag → Body 的顺序解码，任何一步失败即终止。
func (d *Decoder) Decode(src Source, data []byte) (*Record, error) {
	r := datastream.NewReader(data)

	magic, err := r.ReadU32()
	if err != nil || magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	rec := &Record{
		SourcePath:           src.Path,
		MagicNumber:          magic,
		EngineVersion:        DefaultEngineVersion,
		FileModificationTime: src.ModTime,
		FileBirthTime:        src.BirthTime,
	}

	if rec.FormatVersion, err = r.ReadU32(); err != nil {
		return nil, fmt.Errorf("format version: %w", err)
	}
	if rec.FormatVersion > engineVersionSince {
		if rec.EngineVersion, err = r.ReadU32(); err != nil {
			return nil, fmt.Errorf("engine version: %w", err)
		}
		if rec.EngineVersion == 0 {
			rec.EngineVersion = DefaultEngineVersion
		}
	}

	if rec.Metadata, err = DecodeMetadata(r, rec.EngineVersion); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if rec.Metadata.LastModified.Valid {
		rec.FileModificationTime = rec.Metadata.LastModified.Time
	}

	if rec.Compressed, err = r.ReadBool(); err != nil {
		return nil, fmt.Errorf("compression flag: %w", err)
	}

	if rec.Compressed {
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("compressed body: %w", err)
		}
		res, err := d.blocks.Decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("compressed body: %w", err)
		}
		rec.Body = res.Data
		if w := res.Warning(); w != "" {
			rec.Warnings = append(rec.Warnings, w)
		}
	} else {
		tail := r.RemainingBytes()
		rec.Body = make([]byte, len(tail))
		copy(rec.Body, tail)
	}

	return rec, nil
}

// DecodeFile 使用默认解码器解码 path。
func DecodeFile(path string) (*Record, error) {
	return NewDecoder().DecodeFile(path)
}
