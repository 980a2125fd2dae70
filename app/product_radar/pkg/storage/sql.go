package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

const timeLayout = time.RFC3339Nano

// SQLStore 基于 database/sql 的存储，支持 postgres 与 sqlite
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewSQLStore 根据配置打开数据库并初始化表结构
func NewSQLStore(cfg config.DBConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case "postgres":
		connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
		return Open("postgres", connStr)
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return Open("sqlite", cfg.Path)
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.Driver)
	}
}

// Open 使用指定驱动与连接串打开存储
func Open(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == "sqlite" {
		// sqlite 单写者
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close 关闭连接
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) initSchema() error {
	serial := "SERIAL PRIMARY KEY"
	if s.driver == "sqlite" {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS analysis_tasks (
			id TEXT PRIMARY KEY,
			product_url TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			asin TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			price DOUBLE PRECISION,
			currency TEXT,
			rating DOUBLE PRECISION,
			review_count INTEGER,
			availability TEXT,
			seller TEXT,
			category TEXT,
			features TEXT,
			images TEXT,
			description TEXT,
			quality_score DOUBLE PRECISION,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS competitors (
			main_asin TEXT NOT NULL,
			competitor_asin TEXT NOT NULL,
			title TEXT,
			price DOUBLE PRECISION,
			currency TEXT,
			rating DOUBLE PRECISION,
			review_count INTEGER,
			brand TEXT,
			source_zone TEXT,
			score DOUBLE PRECISION,
			detailed BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (main_asin, competitor_asin)
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_reports (
			task_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS worker_executions (
			id ` + serial + `,
			task_id TEXT NOT NULL,
			worker TEXT NOT NULL,
			status TEXT NOT NULL,
			input_summary TEXT,
			output_summary TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			duration_ms INTEGER
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// rebind 将 ? 占位符转换为 postgres 的 $n
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *SQLStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// CreateTask 创建 pending 状态的任务
func (s *SQLStore) CreateTask(ctx context.Context, productURL string) (string, error) {
	id := uuid.NewString()
	now := s.stamp()
	err := s.exec(ctx,
		`INSERT INTO analysis_tasks (id, product_url, status, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, 0, '', ?, ?)`,
		id, sanitize(productURL), string(model.TaskPending), now, now)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// UpdateTask 更新任务状态、进度与错误
func (s *SQLStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{s.stamp()}
	if update.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, string(update.Status))
	}
	if update.Progress != nil {
		// 后台写入可能乱序，进度只前进
		sets = append(sets, "progress = CASE WHEN progress < ? THEN ? ELSE progress END")
		args = append(args, *update.Progress, *update.Progress)
	}
	if update.Error != "" {
		sets = append(sets, "error = ?")
		args = append(args, sanitize(update.Error))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE analysis_tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetTask 查询任务
func (s *SQLStore) GetTask(ctx context.Context, id string) (*Task, error) {
	var (
		t                Task
		status           string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, product_url, status, progress, error, created_at, updated_at FROM analysis_tasks WHERE id = ?`), id).
		Scan(&t.ID, &t.ProductURL, &status, &t.Progress, &t.Error, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	t.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &t, nil
}

// SaveProduct 按 asin 插入或更新商品
func (s *SQLStore) SaveProduct(ctx context.Context, record *model.ProductRecord, asin string) error {
	if record == nil || asin == "" {
		return fmt.Errorf("save product: %w", model.ErrInvalidProduct)
	}
	features, _ := json.Marshal(record.Features)
	images, _ := json.Marshal(record.Images)

	err := s.exec(ctx,
		`INSERT INTO products (asin, url, title, price, currency, rating, review_count, availability,
			seller, category, features, images, description, quality_score, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (asin) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			price = excluded.price,
			currency = excluded.currency,
			rating = excluded.rating,
			review_count = excluded.review_count,
			availability = excluded.availability,
			seller = excluded.seller,
			category = excluded.category,
			features = excluded.features,
			images = excluded.images,
			description = excluded.description,
			quality_score = excluded.quality_score,
			updated_at = excluded.updated_at`,
		asin, sanitize(record.URL), sanitize(record.Title), nullFloat(record.Price), record.Currency,
		nullFloat(record.Rating), nullInt(record.ReviewCount), sanitize(record.Availability),
		sanitize(record.Seller), sanitize(record.Category), sanitize(string(features)), sanitize(string(images)),
		sanitize(record.Description), record.QualityScore(), s.stamp())
	if err != nil {
		return fmt.Errorf("save product %s: %w", asin, err)
	}
	return nil
}

// SaveCompetitors 在一个事务内按 (main_asin, competitor_asin) 写入竞品
func (s *SQLStore) SaveCompetitors(ctx context.Context, rows []model.CompetitorRow, mainASIN string) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO competitors (main_asin, competitor_asin, title, price, currency, rating,
			review_count, brand, source_zone, score, detailed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (main_asin, competitor_asin) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			currency = excluded.currency,
			rating = excluded.rating,
			review_count = excluded.review_count,
			brand = excluded.brand,
			source_zone = excluded.source_zone,
			score = excluded.score,
			detailed = excluded.detailed,
			updated_at = excluded.updated_at`)
	now := s.stamp()
	for _, r := range rows {
		_, err := tx.ExecContext(ctx, query,
			mainASIN, r.ASIN, sanitize(r.Title), nullFloat(r.Price), r.Currency, nullFloat(r.Rating),
			nullInt(r.ReviewCount), sanitize(r.Brand), r.SourceZone, r.Score, r.Detailed, now)
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: %v", err, rerr)
			}
			return fmt.Errorf("save competitor %s: %w", r.ASIN, err)
		}
	}
	return tx.Commit()
}

// SaveReport 按 task_id 写入报告
func (s *SQLStore) SaveReport(ctx context.Context, taskID, content string, metadata map[string]string) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx,
		`INSERT INTO analysis_reports (task_id, content, metadata, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			created_at = excluded.created_at`,
		taskID, sanitize(content), sanitize(string(meta)), s.stamp())
	if err != nil {
		return fmt.Errorf("save report %s: %w", taskID, err)
	}
	return nil
}

// GetReport 查询报告
func (s *SQLStore) GetReport(ctx context.Context, taskID string) (*Report, error) {
	var (
		r       Report
		meta    sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT task_id, content, metadata, created_at FROM analysis_reports WHERE task_id = ?`), taskID).
		Scan(&r.TaskID, &r.Content, &meta, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
			logger.Log.Warnf("报告元数据解析失败 [%s]: %v", taskID, err)
		}
	}
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	return &r, nil
}

// RecordWorkerExecution 追加执行审计
func (s *SQLStore) RecordWorkerExecution(ctx context.Context, e Execution) error {
	var finished any
	var durationMS any
	if !e.FinishedAt.IsZero() {
		finished = e.FinishedAt.UTC().Format(timeLayout)
		durationMS = e.Duration().Milliseconds()
	}
	err := s.exec(ctx,
		`INSERT INTO worker_executions (task_id, worker, status, input_summary, output_summary, error,
			started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TaskID, e.Worker, e.Status, sanitize(e.Input), sanitize(e.Output), sanitize(e.Error),
		e.StartedAt.UTC().Format(timeLayout), finished, durationMS)
	if err != nil {
		return fmt.Errorf("record execution %s/%s: %w", e.TaskID, e.Worker, err)
	}
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
