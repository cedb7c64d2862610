// Package history 安置决定的审计记录
//
// 每次安置调用写入一行审计记录（SQLite），供运维排查
// "任务为什么落到/没落到某台主机"。记录只追加、只读查询，
// 安置路径从不读取历史来影响决策。
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS placements (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	pool        TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	result      TEXT NOT NULL,
	image       TEXT NOT NULL DEFAULT '',
	host        TEXT NOT NULL DEFAULT '',
	slave       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_placements_created_at ON placements(created_at);
`

// Record 一条安置审计记录
type Record struct {
	ID         int64     `json:"id"`
	Pool       string    `json:"pool"`
	Label      string    `json:"label"`
	Result     string    `json:"result"`
	Image      string    `json:"image,omitempty"`
	Host       string    `json:"host,omitempty"`
	Slave      string    `json:"slave,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store SQLite 审计存储
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）审计数据库
//
// dsn 示例: "file:placements.db" 或 ":memory:"
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	// modernc.org/sqlite 对并发写敏感，收紧连接数
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Append 写入一条审计记录
func (s *Store) Append(ctx context.Context, r *Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO placements (pool, label, result, image, host, slave, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Pool, r.Label, r.Result, r.Image, r.Host, r.Slave, r.DurationMS, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("append placement record: %w", err)
	}

	r.ID, _ = res.LastInsertId()
	return nil
}

// Recent 按时间倒序返回最近的审计记录
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pool, label, result, image, host, slave, duration_ms, created_at
		 FROM placements ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query placement records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(&r.ID, &r.Pool, &r.Label, &r.Result, &r.Image, &r.Host,
			&r.Slave, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan placement record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
