package config

import (
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/block"
)

const (
	// DefaultConfigFile 是未显式指定时尝试读取的配置文件。
	DefaultConfigFile = "config.toml"

	// DefaultOutputFolder 是未配置输出目录时在缓存目录旁创建的文件夹名。
	DefaultOutputFolder = "cacheOutput"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空时只使用默认值。
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides 与 Load 相同，但命令行参数会覆盖文件中的同名键。
func LoadWithOverrides(path string, overrides Overrides) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}
	overrides.apply(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(byteSizeDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyExtractDefaults(&cfg.Extract)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Extract.absolutize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheDirectory", "")
	v.SetDefault("OutputDirectory", "")
	v.SetDefault("RecordSuffix", ".d")
	v.SetDefault("PreserveTimes", true)
	v.SetDefault("StrictBlockSize", false)
	v.SetDefault("MaxBlockSize", block.DefaultMaxSize)
	v.SetDefault("ReportPath", "")
	v.SetDefault("CatalogPath", "")
}

func applyExtractDefaults(e *ExtractConfig) {
	if e.OutputDirectory == "" && e.CacheDirectory != "" {
		e.OutputDirectory = DefaultOutputDirectory(e.CacheDirectory)
	}
	if e.MaxBlockSize == 0 {
		e.MaxBlockSize = ByteSize(block.DefaultMaxSize)
	}
}

// DefaultOutputDirectory 返回缓存目录同级的 cacheOutput 目录。
func DefaultOutputDirectory(cacheDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(cacheDir)), DefaultOutputFolder)
}

func (e *ExtractConfig) absolutize() error {
	for _, p := range []*string{&e.CacheDirectory, &e.OutputDirectory, &e.ReportPath, &e.CatalogPath} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("无法解析路径 %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return parseByteSize(v)
		case int:
			return byteSizeFromInt(int64(v))
		case int64:
			return byteSizeFromInt(v)
		case float64:
			return byteSizeFromFloat(v)
		case ByteSize:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的大小类型: %T", v)
		}
	}
}
