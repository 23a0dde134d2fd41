package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/block"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/catalog"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/config"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/extract"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/logging"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/report"
)

func cacheDirFlag() cli.Flag {
	return &cli.StringFlag{Name: "cache-dir", Usage: "缓存目录（覆盖 CacheDirectory）"}
}

func strictSizeFlag() cli.Flag {
	return &cli.BoolFlag{Name: "strict-size", Usage: "压缩块实际长度与声明不符时视为损坏"}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:         "list",
		Usage:        "列出缓存目录中的记录文件",
		Flags:        []cli.Flag{cacheDirFlag()},
		OnUsageError: usageError,
		Action:       listAction,
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "解码全部记录并按 scheme/host/path 写出正文",
		Flags: []cli.Flag{
			cacheDirFlag(),
			&cli.StringFlag{Name: "output-dir", Usage: "输出目录（默认缓存目录同级的 cacheOutput）"},
			&cli.StringFlag{Name: "report", Usage: "YAML 运行报告路径"},
			&cli.StringFlag{Name: "catalog", Usage: "SQLite 资源索引路径"},
			strictSizeFlag(),
			&cli.BoolFlag{Name: "quiet", Usage: "不输出进度"},
		},
		OnUsageError: usageError,
		Action:       extractAction,
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:         "inspect",
		Usage:        "解码指定记录并以 YAML 输出元数据",
		ArgsUsage:    "<file.d>...",
		Flags:        []cli.Flag{strictSizeFlag()},
		OnUsageError: usageError,
		Action:       inspectAction,
	}
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:      "catalog",
		Usage:     "查询资源索引中某个 host 下已写出的资源",
		ArgsUsage: "<catalog.db>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "要查询的 host（不含端口）", Required: true},
		},
		OnUsageError: usageError,
		Action:       catalogAction,
	}
}

func checkConfigCommand() *cli.Command {
	return &cli.Command{
		Name:         "check-config",
		Usage:        "仅校验配置后退出",
		Flags:        []cli.Flag{cacheDirFlag()},
		OnUsageError: usageError,
		Action:       checkConfigAction,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "显示版本信息",
		Action: func(*cli.Context) error {
			printVersion()
			return nil
		},
	}
}

// resolveConfigPath 优先使用 --config / 环境变量，其次是存在的 ./config.toml。
func resolveConfigPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	if _, err := os.Stat(config.DefaultConfigFile); err == nil {
		return config.DefaultConfigFile
	}
	return ""
}

// setup 加载配置并初始化日志，失败时返回退出码 1。
func setup(c *cli.Context, overrides config.Overrides) (*config.Config, *logrus.Logger, string, error) {
	configPath := resolveConfigPath(c)
	overrides.LogLevel = c.String("log-level")

	cfg, err := config.LoadWithOverrides(configPath, overrides)
	if err != nil {
		return nil, nil, configPath, exitf(1, "加载配置失败: %v", err)
	}

	logger, err := logging.InitLogger(cfg.Global, stdErr)
	if err != nil {
		return nil, nil, configPath, exitf(1, "初始化日志失败: %v", err)
	}
	return cfg, logger, configPath, nil
}

// logSkippedDir 记录枚举时被跳过的不可读子目录。
func logSkippedDir(logger *logrus.Logger, action string) extract.SkipFunc {
	return func(path string, err error) {
		logger.WithFields(logrus.Fields{
			"action": action,
			"path":   path,
			"error":  err.Error(),
		}).Warn("跳过不可读目录")
	}
}

func listAction(c *cli.Context) error {
	cfg, logger, configPath, err := setup(c, config.Overrides{CacheDirectory: c.String("cache-dir")})
	if err != nil {
		return err
	}

	files, err := extract.ListRecordFiles(cfg.Extract.CacheDirectory, cfg.Extract.RecordSuffix, logSkippedDir(logger, "list"))
	if err != nil {
		return exitf(1, "列出缓存记录失败: %v", err)
	}

	fields := logging.BaseFields("list", configPath)
	fields["cache_dir"] = cfg.Extract.CacheDirectory
	fields["records"] = len(files)
	logger.WithFields(fields).Info("列出缓存记录")

	if len(files) == 0 {
		fmt.Fprintf(stdOut, "未在 %s 找到缓存记录\n", cfg.Extract.CacheDirectory)
		return nil
	}
	for _, f := range files {
		fmt.Fprintln(stdOut, f)
	}
	return nil
}

func extractAction(c *cli.Context) error {
	overrides := config.Overrides{
		CacheDirectory:  c.String("cache-dir"),
		OutputDirectory: c.String("output-dir"),
		ReportPath:      c.String("report"),
		CatalogPath:     c.String("catalog"),
	}
	if c.IsSet("strict-size") {
		strict := c.Bool("strict-size")
		overrides.StrictBlockSize = &strict
	}

	cfg, logger, configPath, err := setup(c, overrides)
	if err != nil {
		return err
	}
	rt, err := config.BuildExtractRuntime(cfg.Extract)
	if err != nil {
		return exitf(1, "初始化输出目录失败: %v", err)
	}

	files, err := extract.ListRecordFiles(cfg.Extract.CacheDirectory, cfg.Extract.RecordSuffix, logSkippedDir(logger, "extract"))
	if err != nil {
		return exitf(1, "列出缓存记录失败: %v", err)
	}

	fields := logging.BaseFields("extract", configPath)
	fields["cache_dir"] = cfg.Extract.CacheDirectory
	fields["output_dir"] = cfg.Extract.OutputDirectory
	fields["records"] = len(files)
	fields["strict_block_size"] = cfg.Extract.StrictBlockSize
	logger.WithFields(fields).Info("开始提取")

	progress := newProgressPrinter(stdErr, c.Bool("quiet"))
	ex := extract.New(rt.Planner,
		extract.WithDecoder(rt.Decoder),
		extract.WithWriter(rt.Writer),
		extract.WithLogger(logger),
		extract.WithProgress(progress.update),
	)
	result := ex.Run(c.Context, files)
	progress.finish()

	printOutcomes(result)
	printSummary(result, cfg.Extract)

	// 中断后仍记录已处理的部分。
	if err := persist(context.WithoutCancel(c.Context), cfg.Extract, result); err != nil {
		return exitf(1, "%v", err)
	}
	if result.Cancelled {
		return exitf(exitInterrupted, "提取已中断，已处理 %d/%d", result.Processed(), result.Total)
	}
	return nil
}

func persist(ctx context.Context, cfg config.ExtractConfig, result extract.Report) error {
	if cfg.ReportPath != "" {
		doc := report.Build(result, cfg.CacheDirectory, cfg.OutputDirectory)
		if err := report.Write(cfg.ReportPath, doc); err != nil {
			return fmt.Errorf("写入运行报告失败: %w", err)
		}
		fmt.Fprintf(stdOut, "运行报告: %s\n", cfg.ReportPath)
	}
	if cfg.CatalogPath != "" {
		store, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("打开资源索引失败: %w", err)
		}
		defer store.Close()
		if err := store.Save(ctx, result); err != nil {
			return fmt.Errorf("写入资源索引失败: %w", err)
		}
		if err := verifyCatalog(ctx, store, result); err != nil {
			return err
		}
		fmt.Fprintf(stdOut, "资源索引: %s（本次 %d 条）\n", store.Path(), result.Processed())
	}
	return nil
}

// verifyCatalog 回读本次运行的分类计数，确认与内存中的结果一致。
func verifyCatalog(ctx context.Context, store *catalog.Store, result extract.Report) error {
	counts, err := store.CountOutcomes(ctx, result.RunID)
	if err != nil {
		return fmt.Errorf("校验资源索引失败: %w", err)
	}
	for _, kind := range []extract.Kind{extract.OutcomeWritten, extract.OutcomeSkipped, extract.OutcomeFailed} {
		if got, want := counts[kind.String()], result.Count(kind); got != want {
			return fmt.Errorf("资源索引中 %s 为 %d 条，预期 %d 条", kind, got, want)
		}
	}
	return nil
}

func catalogAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return exitf(exitUsage, "catalog 需要一个资源索引文件")
	}
	path := c.Args().First()
	if _, err := os.Stat(path); err != nil {
		return exitf(1, "资源索引不可用: %v", err)
	}

	store, err := catalog.Open(path)
	if err != nil {
		return exitf(1, "打开资源索引失败: %v", err)
	}
	defer store.Close()

	host := c.String("host")
	resources, err := store.ResourcesByHost(c.Context, host)
	if err != nil {
		return exitf(1, "查询资源索引失败: %v", err)
	}
	if len(resources) == 0 {
		fmt.Fprintf(stdOut, "%s 下没有已写出的资源\n", host)
		return nil
	}
	for _, r := range resources {
		fmt.Fprintf(stdOut, "%s\t%s\t%s\t%s\n",
			r.OutputPath, humanize.IBytes(uint64(r.Size)), r.ContentType, r.URL) //nolint:gosec // sizes are non-negative
	}
	return nil
}

func printOutcomes(result extract.Report) {
	for _, o := range result.Outcomes {
		if o.Kind != extract.OutcomeWritten || len(o.Warnings) > 0 {
			fmt.Fprintln(stdOut, o.Diagnostic())
		}
	}
}

func printSummary(result extract.Report, cfg config.ExtractConfig) {
	if result.Empty {
		fmt.Fprintf(stdOut, "未在 %s 找到缓存记录\n", cfg.CacheDirectory)
		return
	}
	var written uint64
	for _, o := range result.Outcomes {
		if o.Kind == extract.OutcomeWritten && o.Resource != nil {
			written += uint64(o.Resource.Size) //nolint:gosec // sizes are non-negative
		}
	}
	fmt.Fprintf(stdOut, "完成: 写入 %d（%s），跳过 %d，失败 %d，共 %d 个记录 -> %s\n",
		result.Count(extract.OutcomeWritten), humanize.IBytes(written),
		result.Count(extract.OutcomeSkipped), result.Count(extract.OutcomeFailed),
		result.Total, cfg.OutputDirectory)
}

func inspectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return exitf(exitUsage, "inspect 需要至少一个记录文件")
	}

	decoder := cachefile.NewDecoder(cachefile.WithDecompressor(
		block.New(block.WithStrict(c.Bool("strict-size"))),
	))

	var (
		views  []report.RecordView
		failed int
	)
	for _, path := range c.Args().Slice() {
		rec, err := decoder.DecodeFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(stdErr, "解码 %s 失败: %v\n", path, err)
			continue
		}
		views = append(views, report.NewRecordView(rec))
	}

	if err := report.WriteRecordViews(stdOut, views); err != nil {
		return exitf(1, "输出记录失败: %v", err)
	}
	if failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func checkConfigAction(c *cli.Context) error {
	cfg, logger, configPath, err := setup(c, config.Overrides{CacheDirectory: c.String("cache-dir")})
	if err != nil {
		return err
	}

	fields := logging.BaseFields("check_config", configPath)
	fields["cache_dir"] = cfg.Extract.CacheDirectory
	fields["output_dir"] = cfg.Extract.OutputDirectory
	fields["max_block_size"] = cfg.Extract.MaxBlockSize.String()
	fields["result"] = "ok"
	logger.WithFields(fields).Info("配置校验通过")
	return nil
}
