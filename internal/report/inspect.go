package report

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
)

// HeaderView 是一个响应头的可读形式。
type HeaderView struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// AttributeView 是一个属性项；Value 以原始字节数计。
type AttributeView struct {
	ID   uint32 `yaml:"id"`
	Size int    `yaml:"size"`
}

// RecordView 是 inspect 命令输出的单条记录。
type RecordView struct {
	Source        string          `yaml:"source"`
	FormatVersion uint32          `yaml:"format_version"`
	EngineVersion uint32          `yaml:"engine_version"`
	URL           string          `yaml:"url"`
	Compressed    bool            `yaml:"compressed"`
	BodySize      int             `yaml:"body_size"`
	SaveToDisk    bool            `yaml:"save_to_disk"`
	LastModified  *time.Time      `yaml:"last_modified,omitempty"`
	Expiration    *time.Time      `yaml:"expiration,omitempty"`
	FileModified  time.Time       `yaml:"file_modified"`
	FileBirth     time.Time       `yaml:"file_birth"`
	Headers       []HeaderView    `yaml:"headers"`
	Attributes    []AttributeView `yaml:"attributes,omitempty"`
	Warnings      []string        `yaml:"warnings,omitempty"`
}

// NewRecordView 从解码结果构建 RecordView。
func NewRecordView(rec *cachefile.Record) RecordView {
	md := rec.Metadata
	view := RecordView{
		Source:        rec.SourcePath,
		FormatVersion: rec.FormatVersion,
		EngineVersion: rec.EngineVersion,
		URL:           md.RawURL,
		Compressed:    rec.Compressed,
		BodySize:      len(rec.Body),
		SaveToDisk:    md.SaveToDisk,
		FileModified:  rec.FileModificationTime,
		FileBirth:     rec.FileBirthTime,
		Headers:       make([]HeaderView, 0, len(md.RawHeaders)),
		Warnings:      rec.Warnings,
	}
	if md.LastModified.Valid {
		t := md.LastModified.Time
		view.LastModified = &t
	}
	if md.ExpirationDate.Valid {
		t := md.ExpirationDate.Time
		view.Expiration = &t
	}
	for _, h := range md.RawHeaders {
		view.Headers = append(view.Headers, HeaderView{Name: string(h.Name), Value: string(h.Value)})
	}
	for _, a := range md.Attributes {
		view.Attributes = append(view.Attributes, AttributeView{ID: a.ID, Size: len(a.Value)})
	}
	return view
}

// WriteRecordViews 以 YAML 多文档形式输出，每条记录一个文档。
func WriteRecordViews(w io.Writer, views []RecordView) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for i := range views {
		if err := enc.Encode(&views[i]); err != nil {
			return fmt.Errorf("encode record %s: %w", views[i].Source, err)
		}
	}
	return enc.Close()
}
