// Package catalog 把提取结果索引到 SQLite，便于按 host/类型检索恢复出的资源。
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/extract"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	total       INTEGER NOT NULL,
	cancelled   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS resources (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES runs(run_id),
	source        TEXT NOT NULL,
	url           TEXT,
	scheme        TEXT,
	host          TEXT,
	path          TEXT,
	query         TEXT,
	output_path   TEXT,
	outcome       TEXT NOT NULL,
	reason        TEXT,
	size          INTEGER,
	content_type  TEXT,
	last_modified TEXT,
	expiration    TEXT,
	save_to_disk  INTEGER,
	headers       TEXT
);

CREATE INDEX IF NOT EXISTS idx_resources_host ON resources(host);
CREATE INDEX IF NOT EXISTS idx_resources_run ON resources(run_id);
`

// Resource 是 resources 表中的一行。
type Resource struct {
	RunID       string
	Source      string
	URL         string
	Host        string
	OutputPath  string
	Outcome     string
	Reason      string
	Size        int64
	ContentType string
}

// Store 封装 catalog 数据库连接。
type Store struct {
	db   *sql.DB
	path string
}

// Open 打开或创建 path 处的数据库，并确保表结构存在。
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path 返回数据库文件路径。
func (s *Store) Path() string {
	return s.path
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	return s.db.Close()
}

// Save 在一个事务内写入一次运行及其全部结果。
func (s *Store) Save(ctx context.Context, r extract.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, total, cancelled) VALUES (?, ?, ?, ?, ?)`,
		r.RunID, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Total, r.Cancelled,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO resources (
		run_id, source, url, scheme, host, path, query, output_path, outcome, reason,
		size, content_type, last_modified, expiration, save_to_disk, headers
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare resource insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range r.Outcomes {
		var (
			res     extract.Resource
			headers any
		)
		if o.Resource != nil {
			res = *o.Resource
			encoded, err := encodeHeaders(res)
			if err != nil {
				return err
			}
			headers = encoded
		}
		if _, err := stmt.ExecContext(ctx,
			r.RunID, o.Source, nullable(res.URL), nullable(res.Scheme), nullable(res.Host),
			nullable(res.Path), nullable(res.Query), nullable(o.Path), o.Kind.String(),
			nullable(o.Reason()), res.Size, nullable(res.ContentType),
			nullable(formatTime(res.LastModified)), nullable(formatTime(res.Expiration)),
			res.SaveToDisk, headers,
		); err != nil {
			return fmt.Errorf("insert resource %s: %w", o.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	return nil
}

// ResourcesByHost 返回某个 host 下已写出的资源，按输出路径排序。
func (s *Store) ResourcesByHost(ctx context.Context, host string) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, source, COALESCE(url, ''), COALESCE(host, ''), COALESCE(output_path, ''),
		       outcome, COALESCE(reason, ''), COALESCE(size, 0), COALESCE(content_type, '')
		FROM resources
		WHERE host = ? AND outcome = 'written'
		ORDER BY output_path`, host)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.RunID, &r.Source, &r.URL, &r.Host, &r.OutputPath,
			&r.Outcome, &r.Reason, &r.Size, &r.ContentType); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountOutcomes 返回一次运行中各分类的数量。
func (s *Store) CountOutcomes(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM resources WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

type headerJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func encodeHeaders(res extract.Resource) (string, error) {
	list := make([]headerJSON, 0, len(res.Headers))
	for _, h := range res.Headers {
		list = append(list, headerJSON{Name: string(h.Name), Value: string(h.Value)})
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode headers: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
