package config

import (
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/block"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/output"
)

// ExtractRuntime 将提取配置转换为解码/规划/写入组件，方便 CLI 直接取用。
type ExtractRuntime struct {
	Config  ExtractConfig
	Decoder *cachefile.Decoder
	Planner *output.Planner
	Writer  *output.Writer
}

// BuildExtractRuntime 根据配置创建运行时组件（假定 Validate 已经通过）。
func BuildExtractRuntime(cfg ExtractConfig) (*ExtractRuntime, error) {
	planner, err := output.NewPlanner(cfg.OutputDirectory)
	if err != nil {
		return nil, err
	}
	decompressor := block.New(
		block.WithStrict(cfg.StrictBlockSize),
		block.WithMaxSize(uint64(cfg.MaxBlockSize)), //nolint:gosec // validated positive
	)
	return &ExtractRuntime{
		Config:  cfg,
		Decoder: cachefile.NewDecoder(cachefile.WithDecompressor(decompressor)),
		Planner: planner,
		Writer:  output.NewWriter(output.WithPreserveTimes(cfg.PreserveTimes)),
	}, nil
}
