// Package report 将一次提取的结果与单条记录的元数据序列化为 YAML。
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/extract"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/version"
)

// Summary 是批次计数。
type Summary struct {
	Total     int `yaml:"total"`
	Processed int `yaml:"processed"`
	Written   int `yaml:"written"`
	Skipped   int `yaml:"skipped"`
	Failed    int `yaml:"failed"`
}

// Entry 对应一个记录文件的结果。
type Entry struct {
	Source      string   `yaml:"source"`
	Outcome     string   `yaml:"outcome"`
	Reason      string   `yaml:"reason,omitempty"`
	URL         string   `yaml:"url,omitempty"`
	Target      string   `yaml:"target,omitempty"`
	Size        int      `yaml:"size,omitempty"`
	ContentType string   `yaml:"content_type,omitempty"`
	Compressed  bool     `yaml:"compressed,omitempty"`
	Error       string   `yaml:"error,omitempty"`
	Warnings    []string `yaml:"warnings,omitempty"`
}

// Document 是写入磁盘的报告结构。
type Document struct {
	Tool       string    `yaml:"tool"`
	RunID      string    `yaml:"run_id"`
	CacheDir   string    `yaml:"cache_dir,omitempty"`
	OutputDir  string    `yaml:"output_dir,omitempty"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Cancelled  bool      `yaml:"cancelled"`
	Empty      bool      `yaml:"empty"`
	Summary    Summary   `yaml:"summary"`
	Entries    []Entry   `yaml:"entries"`
}

// Build 把 extract.Report 转换为 Document，Entries 与输入顺序一致。
func Build(r extract.Report, cacheDir, outputDir string) Document {
	doc := Document{
		Tool:       version.Short(),
		RunID:      r.RunID,
		CacheDir:   cacheDir,
		OutputDir:  outputDir,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Cancelled:  r.Cancelled,
		Empty:      r.Empty,
		Summary: Summary{
			Total:     r.Total,
			Processed: r.Processed(),
			Written:   r.Count(extract.OutcomeWritten),
			Skipped:   r.Count(extract.OutcomeSkipped),
			Failed:    r.Count(extract.OutcomeFailed),
		},
		Entries: make([]Entry, 0, len(r.Outcomes)),
	}

	for _, o := range r.Outcomes {
		entry := Entry{
			Source:   o.Source,
			Outcome:  o.Kind.String(),
			Reason:   o.Reason(),
			Target:   o.Path,
			Warnings: o.Warnings,
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		if res := o.Resource; res != nil {
			entry.URL = res.URL
			entry.Size = res.Size
			entry.ContentType = res.ContentType
			entry.Compressed = res.Compressed
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc
}

// Write 将 Document 写入 path，必要时创建父目录。
func Write(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Read 读取之前写入的报告。
func Read(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read report: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse report: %w", err)
	}
	return doc, nil
}
