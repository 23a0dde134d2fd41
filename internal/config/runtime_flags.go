package config

import "github.com/spf13/viper"

// Overrides 承载命令行参数，非空字段覆盖配置文件中的同名键。
type Overrides struct {
	CacheDirectory  string
	OutputDirectory string
	ReportPath      string
	CatalogPath     string
	LogLevel        string

	// StrictBlockSize 为 nil 时保留配置文件的值。
	StrictBlockSize *bool
}

func (o Overrides) apply(v *viper.Viper) {
	setIfNotEmpty(v, "CacheDirectory", o.CacheDirectory)
	setIfNotEmpty(v, "OutputDirectory", o.OutputDirectory)
	setIfNotEmpty(v, "ReportPath", o.ReportPath)
	setIfNotEmpty(v, "CatalogPath", o.CatalogPath)
	setIfNotEmpty(v, "LogLevel", o.LogLevel)
	if o.StrictBlockSize != nil {
		v.Set("StrictBlockSize", *o.StrictBlockSize)
	}
}

func setIfNotEmpty(v *viper.Viper, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
