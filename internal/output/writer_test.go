package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
)

func TestWriterCreatesParentsAndPreservesTimes(t *testing.T) {
	p := newTestPlanner(t)
	modTime := time.Now().Add(-72 * time.Hour).Truncate(time.Second).UTC()
	rec := &cachefile.Record{
		Body:                 []byte("payload"),
		Metadata:             metaFor("https://example.com/deep/nested/file.txt"),
		FileModificationTime: modTime,
		FileBirthTime:        modTime.Add(-time.Hour),
	}

	plan, err := p.Plan(rec.Metadata)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	if err := NewWriter().Write(rec, plan); err != nil {
		t.Fatalf("write error: %v", err)
	}

	body, err := os.ReadFile(plan.Target)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("payload mismatch: %s", body)
	}
	info, err := os.Stat(plan.Target)
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if !info.ModTime().Equal(modTime) {
		t.Fatalf("modtime mismatch: expected %v got %v", modTime, info.ModTime())
	}

	entries, err := os.ReadDir(plan.Dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("临时文件应在 rename 后消失，目录内容: %v", entries)
	}
}

func TestWriterWithoutPreserveTimes(t *testing.T) {
	p := newTestPlanner(t)
	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &cachefile.Record{
		Body:                 []byte("x"),
		Metadata:             metaFor("https://example.com/x.txt"),
		FileModificationTime: old,
	}
	plan, err := p.Plan(rec.Metadata)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	if err := NewWriter(WithPreserveTimes(false)).Write(rec, plan); err != nil {
		t.Fatalf("write error: %v", err)
	}
	info, err := os.Stat(plan.Target)
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if info.ModTime().Equal(old) {
		t.Fatalf("modtime should not be preserved")
	}
}

func TestWriterTruncatesExistingFile(t *testing.T) {
	p := newTestPlanner(t)
	md := metaFor("https://example.com/")
	plan, err := p.Plan(md)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}

	w := NewWriter()
	if err := w.Write(&cachefile.Record{Body: []byte("a much longer first body"), Metadata: md}, plan); err != nil {
		t.Fatalf("first write error: %v", err)
	}
	if err := w.Write(&cachefile.Record{Body: []byte("short"), Metadata: md}, plan); err != nil {
		t.Fatalf("second write error: %v", err)
	}
	body, err := os.ReadFile(plan.Target)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(body) != "short" {
		t.Fatalf("existing file should be replaced, got %q", body)
	}
}

func TestWriterReportsWriteFailed(t *testing.T) {
	p := newTestPlanner(t)

	// 先以叶子文件写入 a.js，再把它当作目录使用。
	leaf := metaFor("https://example.com/a.js")
	leafPlan, err := p.Plan(leaf)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	w := NewWriter()
	if err := w.Write(&cachefile.Record{Body: []byte("js"), Metadata: leaf}, leafPlan); err != nil {
		t.Fatalf("write error: %v", err)
	}

	nested := metaFor("https://example.com/a.js/b.png")
	nestedPlan, err := p.Plan(nested)
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	err = w.Write(&cachefile.Record{Body: []byte("png"), Metadata: nested}, nestedPlan)
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}

	// 目标位置已是目录时 rename 失败。
	dirPlan := Plan{Dir: filepath.Dir(leafPlan.Dir), Target: leafPlan.Dir}
	err = w.Write(&cachefile.Record{Body: []byte("x")}, dirPlan)
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed when target is a directory, got %v", err)
	}
}
