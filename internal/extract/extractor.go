// Package extract 负责批量处理缓存记录：逐个解码、规划输出路径并写入，
// 单个记录的失败只会体现在对应的 Outcome 中，不会中断整个批次。
package extract

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/logging"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/output"
)

// ProgressEvent 在每个文件处理完成后发出。
type ProgressEvent struct {
	Done    int
	Total   int
	Path    string
	Outcome Outcome
}

// Fraction 返回 [0,1] 区间的完成比例。
func (e ProgressEvent) Fraction() float64 {
	if e.Total <= 0 {
		return 1
	}
	return float64(e.Done) / float64(e.Total)
}

// ProgressFunc 接收进度事件，在 Run 所在的 goroutine 中同步调用。
type ProgressFunc func(ProgressEvent)

// Report 汇总一次批处理的结果，Outcomes 与输入文件顺序一致。
type Report struct {
	RunID      string
	Total      int
	Outcomes   []Outcome
	Cancelled  bool
	Empty      bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count 返回指定分类的结果数。
func (r Report) Count(kind Kind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Processed 返回实际处理过的文件数，取消时小于 Total。
func (r Report) Processed() int {
	return len(r.Outcomes)
}

// Extractor 串联 Decoder、Planner 与 Writer。
type Extractor struct {
	decoder  *cachefile.Decoder
	planner  *output.Planner
	writer   *output.Writer
	logger   *logrus.Logger
	progress ProgressFunc
	newRunID func() string
}

// Option 配置 Extractor。
type Option func(*Extractor)

// WithDecoder 替换记录解码器（例如启用严格的块长度校验）。
func WithDecoder(d *cachefile.Decoder) Option {
	return func(e *Extractor) {
		if d != nil {
			e.decoder = d
		}
	}
}

// WithWriter 替换输出写入器。
func WithWriter(w *output.Writer) Option {
	return func(e *Extractor) {
		if w != nil {
			e.writer = w
		}
	}
}

// WithLogger 指定逐条结果日志的输出。
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress 注册进度回调。
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// New 创建 Extractor；planner 决定输出根目录，其余依赖使用默认实现。
func New(planner *output.Planner, opts ...Option) *Extractor {
	e := &Extractor{
		decoder:  cachefile.NewDecoder(),
		planner:  planner,
		writer:   output.NewWriter(),
		logger:   discardLogger(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 按顺序处理 files。ctx 只在文件之间检查，已开始的文件总会完整处理。
// files 为空时返回 Empty 报告且不做任何事。
func (e *Extractor) Run(ctx context.Context, files []string) Report {
	report := Report{
		RunID:     e.newRunID(),
		Total:     len(files),
		StartedAt: time.Now(),
	}
	if len(files) == 0 {
		report.Empty = true
		report.FinishedAt = time.Now()
		e.logger.WithFields(logrus.Fields{"action": "extract", "run_id": report.RunID}).
			Warn("未找到缓存记录")
		return report
	}

	report.Outcomes = make([]Outcome, 0, len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		outcome := e.Process(path)
		report.Outcomes = append(report.Outcomes, outcome)
		e.logOutcome(report.RunID, outcome)

		if e.progress != nil {
			e.progress(ProgressEvent{
				Done:    i + 1,
				Total:   len(files),
				Path:    path,
				Outcome: outcome,
			})
		}
	}
	report.FinishedAt = time.Now()

	e.logger.WithFields(logrus.Fields{
		"action":    "extract",
		"run_id":    report.RunID,
		"total":     report.Total,
		"written":   report.Count(OutcomeWritten),
		"skipped":   report.Count(OutcomeSkipped),
		"failed":    report.Count(OutcomeFailed),
		"cancelled": report.Cancelled,
	}).Info("提取完成")
	return report
}

// Process 处理单个记录文件：解码 → 规划 → 写入。
func (e *Extractor) Process(path string) Outcome {
	outcome := Outcome{Source: path}

	rec, err := e.decoder.DecodeFile(path)
	if err != nil {
		outcome.Kind = OutcomeSkipped
		outcome.Err = err
		return outcome
	}
	outcome.Resource = newResource(rec)
	outcome.Warnings = rec.Warnings

	plan, err := e.planner.Plan(rec.Metadata)
	if err != nil {
		outcome.Kind = classify(err)
		outcome.Err = err
		return outcome
	}
	outcome.Path = plan.Target

	if err := e.writer.Write(rec, plan); err != nil {
		outcome.Kind = classify(err)
		outcome.Err = err
		return outcome
	}
	outcome.Kind = OutcomeWritten
	return outcome
}

func (e *Extractor) logOutcome(runID string, o Outcome) {
	rawURL := ""
	if o.Resource != nil {
		rawURL = o.Resource.URL
	}
	entry := e.logger.WithFields(logging.RecordFields(runID, o.Source, rawURL, o.Kind.String()))
	if o.Path != "" {
		entry = entry.WithField("target", o.Path)
	}
	if len(o.Warnings) > 0 {
		entry = entry.WithField("warnings", o.Warnings)
	}

	switch o.Kind {
	case OutcomeWritten:
		entry.Info("记录已提取")
	case OutcomeFailed:
		entry.WithField("reason", o.Reason()).WithError(o.Err).Warn("记录写入失败")
	default:
		entry.WithField("reason", o.Reason()).WithError(o.Err).Info("跳过无效记录")
	}
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
