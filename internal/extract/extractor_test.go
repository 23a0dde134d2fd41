package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/block"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/cachefile"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/output"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/testutil"
)

func newTestExtractor(t *testing.T, opts ...Option) (*Extractor, string) {
	t.Helper()
	outDir := filepath.Join(t.TempDir(), "cacheOutput")
	planner, err := output.NewPlanner(outDir)
	require.NoError(t, err)
	return New(planner, opts...), planner.Root()
}

func TestRunWritesValidRecords(t *testing.T) {
	cacheDir := t.TempDir()
	rec := testutil.NewRecord("https://example.com/assets/app.js", []byte("console.log(1)"))
	rec.Headers = [][2]string{{"Content-Type", "application/javascript"}}
	src := testutil.WriteRecord(t, cacheDir, "data8/1/abc.d", rec)

	var events []ProgressEvent
	ex, outRoot := newTestExtractor(t, WithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))

	report := ex.Run(context.Background(), []string{src})
	require.Len(t, report.Outcomes, 1)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Cancelled)
	assert.False(t, report.Empty)

	got := report.Outcomes[0]
	require.Equal(t, OutcomeWritten, got.Kind, got.Diagnostic())
	want := filepath.Join(outRoot, "https", "example.com", "assets", "app.js")
	assert.Equal(t, want, got.Path)
	require.NotNil(t, got.Resource)
	assert.Equal(t, "application/javascript", got.Resource.ContentType)
	assert.Equal(t, "example.com", got.Resource.Host)

	body, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(body))

	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Done)
	assert.InDelta(t, 1.0, events[0].Fraction(), 1e-9)
}

func TestRunClassifiesOutcomes(t *testing.T) {
	cacheDir := t.TempDir()
	valid := testutil.WriteRecord(t, cacheDir, "a.d",
		testutil.NewRecord("http://example.com/ok.txt", []byte("ok")))
	foreign := testutil.WriteFile(t, cacheDir, "b.d", []byte("PK\x03\x04 not a record"))

	truncated := testutil.NewRecord("http://example.com/t.txt", nil).Encode(t)
	truncatedPath := testutil.WriteFile(t, cacheDir, "c.d", truncated[:12])

	corrupt := testutil.NewRecord("http://example.com/z.txt", nil)
	corruptBytes := corrupt.Encode(t)
	w := &testutil.Writer{}
	w.Raw(corruptBytes[:len(corruptBytes)-1]).Bool(true).Blob([]byte{0, 0, 0, 9, 0xde, 0xad, 0xbe, 0xef})
	corruptPath := testutil.WriteFile(t, cacheDir, "d.d", w.Bytes())

	escape := testutil.WriteRecord(t, cacheDir, "e.d",
		testutil.NewRecord("http://example.com/../../etc/passwd", []byte("nope")))
	missing := filepath.Join(cacheDir, "gone.d")

	ex, _ := newTestExtractor(t)
	report := ex.Run(context.Background(), []string{valid, foreign, truncatedPath, corruptPath, escape, missing})
	require.Len(t, report.Outcomes, 6)

	expect := []struct {
		kind   Kind
		reason string
	}{
		{OutcomeWritten, ""},
		{OutcomeSkipped, "invalid_magic"},
		{OutcomeSkipped, "truncated_input"},
		{OutcomeSkipped, "decompression_error"},
		{OutcomeFailed, "path_escape"},
		{OutcomeSkipped, "unreadable"},
	}
	for i, e := range expect {
		o := report.Outcomes[i]
		assert.Equal(t, e.kind, o.Kind, "outcome %d: %s", i, o.Diagnostic())
		assert.Equal(t, e.reason, o.Reason(), "outcome %d", i)
		assert.Contains(t, o.Diagnostic(), o.Source)
	}
	assert.Equal(t, 1, report.Count(OutcomeWritten))
	assert.Equal(t, 4, report.Count(OutcomeSkipped))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	assert.ErrorIs(t, report.Outcomes[4].Err, output.ErrPathEscape)
	assert.Empty(t, report.Outcomes[4].Path)
}

func TestRunCancelsBetweenFiles(t *testing.T) {
	cacheDir := t.TempDir()
	files := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		rec := testutil.NewRecord(fmt.Sprintf("http://example.com/f%02d.txt", i), []byte{byte(i)})
		files = append(files, testutil.WriteRecord(t, cacheDir, fmt.Sprintf("%02d.d", i), rec))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCalls := 0
	ex, outRoot := newTestExtractor(t, WithProgress(func(ev ProgressEvent) {
		progressCalls++
		if ev.Done == 3 {
			cancel()
		}
	}))

	report := ex.Run(ctx, files)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 3, report.Processed())
	assert.Equal(t, 3, progressCalls)

	_, err := os.Stat(filepath.Join(outRoot, "http", "example.com", "f03.txt"))
	assert.True(t, os.IsNotExist(err), "cancelled run must not touch later files")
}

func TestRunEmptyList(t *testing.T) {
	called := false
	ex, outRoot := newTestExtractor(t, WithProgress(func(ProgressEvent) { called = true }))

	report := ex.Run(context.Background(), nil)
	assert.True(t, report.Empty)
	assert.Zero(t, report.Processed())
	assert.False(t, called)

	_, err := os.Stat(outRoot)
	assert.True(t, os.IsNotExist(err), "empty run must not create the output root")
}

func TestRunIsIdempotent(t *testing.T) {
	cases := []struct {
		name  string
		clear bool
	}{
		{"output cleared between runs", true},
		{"output overwritten in place", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cacheDir := t.TempDir()
			files := []string{
				testutil.WriteRecord(t, cacheDir, "1.d", testutil.NewRecord("https://example.com/", []byte("<html>"))),
				testutil.WriteRecord(t, cacheDir, "2.d", testutil.NewRecord("https://example.com/a/b.css", []byte("body{}"))),
				testutil.WriteFile(t, cacheDir, "3.d", []byte("junk")),
			}

			ex, outRoot := newTestExtractor(t)
			first := ex.Run(context.Background(), files)
			snapshot := readTree(t, outRoot)
			require.Len(t, snapshot, 2)

			if tc.clear {
				require.NoError(t, os.RemoveAll(outRoot))
			}
			second := ex.Run(context.Background(), files)
			assert.Equal(t, snapshot, readTree(t, outRoot))
			require.Len(t, second.Outcomes, len(first.Outcomes))
			for i := range first.Outcomes {
				assert.Equal(t, first.Outcomes[i].Kind, second.Outcomes[i].Kind)
				assert.Equal(t, first.Outcomes[i].Path, second.Outcomes[i].Path)
				assert.Equal(t, first.Outcomes[i].Reason(), second.Outcomes[i].Reason())
			}
			assert.NotEqual(t, first.RunID, second.RunID)
		})
	}
}

func TestRunStrictDecoderRejectsSizeMismatch(t *testing.T) {
	cacheDir := t.TempDir()
	blk, err := block.Compress([]byte("hello"))
	require.NoError(t, err)
	blk[3] = 99 // 声明长度与实际不符

	base := testutil.NewRecord("http://example.com/h.txt", nil).Encode(t)
	w := &testutil.Writer{}
	w.Raw(base[:len(base)-1]).Bool(true).Blob(blk)
	path := testutil.WriteFile(t, cacheDir, "h.d", w.Bytes())

	lenient, _ := newTestExtractor(t)
	got := lenient.Run(context.Background(), []string{path}).Outcomes[0]
	assert.Equal(t, OutcomeWritten, got.Kind)
	assert.Len(t, got.Warnings, 1)

	strict, _ := newTestExtractor(t, WithDecoder(cachefile.NewDecoder(
		cachefile.WithDecompressor(block.New(block.WithStrict(true))),
	)))
	got = strict.Run(context.Background(), []string{path}).Outcomes[0]
	assert.Equal(t, OutcomeSkipped, got.Kind)
	assert.Equal(t, "decompression_error", got.Reason())
}

func TestRunLogsOneLinePerOutcome(t *testing.T) {
	cacheDir := t.TempDir()
	files := []string{
		testutil.WriteRecord(t, cacheDir, "1.d", testutil.NewRecord("https://example.com/x.txt", []byte("x"))),
		testutil.WriteFile(t, cacheDir, "2.d", []byte{0, 0}),
	}

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	ex, _ := newTestExtractor(t, WithLogger(logger))
	report := ex.Run(context.Background(), files)

	logs := buf.String()
	assert.Contains(t, logs, `"outcome":"written"`)
	assert.Contains(t, logs, `"outcome":"skipped"`)
	assert.Contains(t, logs, `"reason":"invalid_magic"`)
	assert.Contains(t, logs, report.RunID)
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		tree[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}
