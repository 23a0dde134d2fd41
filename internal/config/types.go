package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize 支持 "512MiB"、"1GB" 或纯字节数等写法。
type ByteSize int64

// maxByteSize 是 ByteSize 可接受的上限，字符串与数字写法共用。
const maxByteSize = 1 << 62

// UnmarshalText 使 Viper 可以识别带单位的字节数。
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := parseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Int64 返回字节数。
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// String 以二进制单位输出，例如 1.0 GiB。
func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int64(b))
	}
	return humanize.IBytes(uint64(b))
}

func parseByteSize(raw string) (ByteSize, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %s", raw)
	}
	if n > maxByteSize {
		return 0, fmt.Errorf("size value too large: %s", raw)
	}
	return ByteSize(n), nil
}

func byteSizeFromInt(n int64) (ByteSize, error) {
	if n > maxByteSize {
		return 0, fmt.Errorf("size value too large: %d", n)
	}
	return ByteSize(n), nil
}

func byteSizeFromFloat(f float64) (ByteSize, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt64 {
		return 0, fmt.Errorf("invalid size value: %v", f)
	}
	if f > maxByteSize {
		return 0, fmt.Errorf("size value too large: %v", f)
	}
	return ByteSize(int64(f)), nil
}

// GlobalConfig 描述日志等进程级行为。
type GlobalConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// ExtractConfig 决定从哪里读取缓存记录、写到哪里以及如何解码。
type ExtractConfig struct {
	CacheDirectory  string   `mapstructure:"CacheDirectory"`
	OutputDirectory string   `mapstructure:"OutputDirectory"`
	RecordSuffix    string   `mapstructure:"RecordSuffix"`
	PreserveTimes   bool     `mapstructure:"PreserveTimes"`
	StrictBlockSize bool     `mapstructure:"StrictBlockSize"`
	MaxBlockSize    ByteSize `mapstructure:"MaxBlockSize"`
	ReportPath      string   `mapstructure:"ReportPath"`
	CatalogPath     string   `mapstructure:"CatalogPath"`
}

// Config 是 TOML 文件映射的整体结构，所有键位于顶层。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Extract ExtractConfig `mapstructure:",squash"`
}
