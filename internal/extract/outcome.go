package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/output"
)

// Kind 是单个记录文件的处理结果分类。
type Kind uint8

const (
	// OutcomeSkipped 表示记录无效（魔数不符、截断、压缩块损坏或无法读取），未尝试写入。
	OutcomeSkipped Kind = iota

	// OutcomeWritten 表示正文已写入 Outcome.Path。
	OutcomeWritten

	// OutcomeFailed 表示记录有效但写入被拒绝或失败（越界路径、文件系统错误）。
	OutcomeFailed
)

// String 返回用于日志与报告的分类名。
func (k Kind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeWritten:
		return "written"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resource 汇总解码出的记录信息，供报告与索引使用。
type Resource struct {
	URL           string
	Scheme        string
	Host          string
	Path          string
	Query         string
	Size          int
	Compressed    bool
	FormatVersion uint32
	EngineVersion uint32
	ContentType   string
	LastModified  time.Time
	Expiration    time.Time
	SaveToDisk    bool
	Headers       []cachefile.Header
}

// Outcome 是一次记录处理的结果，由批处理逐个产生。
type Outcome struct {
	Source   string
	Kind     Kind
	Path     string
	Err      error
	Warnings []string

	// Resource 在解码成功时非空。
	Resource *Resource
}

// Reason 返回错误类别的短名，无错误时为空。
func (o Outcome) Reason() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, cachefile.ErrInvalidMagic):
		return "invalid_magic"
	case errors.Is(o.Err, cachefile.ErrTruncatedInput):
		return "truncated_input"
	case errors.Is(o.Err, cachefile.ErrDecompression):
		return "decompression_error"
	case errors.Is(o.Err, output.ErrPathEscape):
		return "path_escape"
	case errors.Is(o.Err, output.ErrWriteFailed):
		return "write_failed"
	default:
		return "unreadable"
	}
}

// Diagnostic 返回面向用户的一行说明。
func (o Outcome) Diagnostic() string {
	var msg string
	switch o.Reason() {
	case "":
		msg = fmt.Sprintf("%s -> %s", o.Source, o.Path)
	case "invalid_magic":
		msg = fmt.Sprintf("%s 不是有效的缓存记录（魔数不符）", o.Source)
	case "truncated_input":
		msg = fmt.Sprintf("%s 记录被截断: %v", o.Source, o.Err)
	case "decompression_error":
		msg = fmt.Sprintf("%s 压缩正文损坏: %v", o.Source, o.Err)
	case "path_escape":
		msg = fmt.Sprintf("%s 拒绝写入，路径越出 origin 目录: %v", o.Source, o.Err)
	case "write_failed":
		msg = fmt.Sprintf("%s 写入失败: %v", o.Source, o.Err)
	default:
		msg = fmt.Sprintf("%s 无法读取: %v", o.Source, o.Err)
	}
	if len(o.Warnings) > 0 {
		msg += "（警告: " + strings.Join(o.Warnings, "; ") + "）"
	}
	return msg
}

func classify(err error) Kind {
	if errors.Is(err, output.ErrPathEscape) || errors.Is(err, output.ErrWriteFailed) {
		return OutcomeFailed
	}
	return OutcomeSkipped
}

func newResource(rec *cachefile.Record) *Resource {
	md := rec.Metadata
	res := &Resource{
		URL:           md.RawURL,
		Size:          len(rec.Body),
		Compressed:    rec.Compressed,
		FormatVersion: rec.FormatVersion,
		EngineVersion: rec.EngineVersion,
		SaveToDisk:    md.SaveToDisk,
		Headers:       md.RawHeaders,
	}
	if md.URL != nil {
		res.Scheme = md.URL.Scheme
		res.Host = md.URL.Hostname()
		res.Path = md.URL.Path
		res.Query = md.URL.RawQuery
	}
	if ct, ok := md.Header("Content-Type"); ok {
		res.ContentType = string(ct)
	}
	if md.LastModified.Valid {
		res.LastModified = md.LastModified.Time
	}
	if md.ExpirationDate.Valid {
		res.Expiration = md.ExpirationDate.Time
	}
	return res
}
