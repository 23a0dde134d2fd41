package output

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
)

// IndexFile 是目录型 URL 的落盘文件名。
const IndexFile = "index.html"

// placeholderSegment 替代空的 scheme/host。
const placeholderSegment = "_"

// ErrPathEscape 表示 URL 会把写入位置带出所属的 origin 目录，必须拒绝写入。
var ErrPathEscape = errors.New("path escapes origin folder")

// Plan 是一条记录的落盘计划。写入前需确保 Dir 存在。
type Plan struct {
	Origin      string
	Target      string
	Dir         string
	IsDirectory bool
}

// Planner 把记录 URL 映射为输出根目录下的路径：
//
//	<OutputRoot>/<scheme>/<host>/<url path>            # 叶子文件
//	<OutputRoot>/<scheme>/<host>/<url path>/index.html # 目录型 URL
type Planner struct {
	root string
}

// NewPlanner 以 outputRoot 的绝对路径构建 Planner。
func NewPlanner(outputRoot string) (*Planner, error) {
	if outputRoot == "" {
		return nil, errors.New("output root required")
	}
	abs, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	return &Planner{root: abs}, nil
}

// Root 返回输出根目录的绝对路径。
func (p *Planner) Root() string {
	return p.root
}

// Plan 计算 md 对应的写入位置。
func (p *Planner) Plan(md cachefile.Metadata) (Plan, error) {
	scheme, host, urlPath := splitURL(md)

	schemeSeg, err := originSegment(scheme)
	if err != nil {
		return Plan{}, fmt.Errorf("scheme %q: %w", scheme, err)
	}
	hostSeg, err := originSegment(host)
	if err != nil {
		return Plan{}, fmt.Errorf("host %q: %w", host, err)
	}
	origin := filepath.Join(p.root, schemeSeg, hostSeg)

	segments, err := pathSegments(urlPath)
	if err != nil {
		return Plan{}, fmt.Errorf("path %q: %w", urlPath, err)
	}
	candidate := filepath.Join(append([]string{origin}, segments...)...)
	if !within(origin, candidate) {
		return Plan{}, fmt.Errorf("path %q resolves to %s: %w", urlPath, candidate, ErrPathEscape)
	}

	if isDirectory(md, urlPath, segments, candidate == origin) {
		return Plan{
			Origin:      origin,
			Target:      filepath.Join(candidate, IndexFile),
			Dir:         candidate,
			IsDirectory: true,
		}, nil
	}
	return Plan{
		Origin: origin,
		Target: candidate,
		Dir:    filepath.Dir(candidate),
	}, nil
}

// splitURL 返回 scheme、不含端口的 host 以及已解码的路径。URL 无法解析时
// 整个原始字符串作为路径，落到 _/_ 下并接受同样的越界检查。
func splitURL(md cachefile.Metadata) (scheme, host, urlPath string) {
	if md.URL == nil {
		return "", "", md.RawURL
	}
	return md.URL.Scheme, md.URL.Hostname(), md.URL.Path
}

func originSegment(seg string) (string, error) {
	if seg == "" {
		return placeholderSegment, nil
	}
	if seg == "." || seg == ".." || strings.ContainsAny(seg, "/\\\x00") {
		return "", ErrPathEscape
	}
	return seg, nil
}

// pathSegments 以 / 与 \ 切分路径；出现 .. 或 NUL 直接拒绝，. 被忽略。
func pathSegments(urlPath string) ([]string, error) {
	parts := strings.FieldsFunc(urlPath, isSeparator)
	segments := parts[:0]
	for _, part := range parts {
		switch {
		case part == "..":
			return nil, ErrPathEscape
		case strings.ContainsRune(part, 0):
			return nil, ErrPathEscape
		case part == ".":
			continue
		}
		segments = append(segments, part)
	}
	return segments, nil
}

func isDirectory(md cachefile.Metadata, urlPath string, segments []string, atOrigin bool) bool {
	if urlPath == "" || endsWithSeparator(urlPath) || atOrigin {
		return true
	}
	if loc, ok := md.Header("Location"); ok && endsWithSeparator(string(loc)) {
		return true
	}
	if len(segments) == 0 {
		return true
	}
	return !strings.Contains(segments[len(segments)-1], ".")
}

func within(origin, candidate string) bool {
	return candidate == origin || strings.HasPrefix(candidate, origin+string(filepath.Separator))
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

func endsWithSeparator(s string) bool {
	return strings.HasSuffix(s, "/") || strings.HasSuffix(s, "\\")
}
