package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the durable job store behind the offline queue. One job is
// always written in a single transaction, so a reader never sees a job
// without its attachments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// PutJob fully replaces any prior content under the job's key: the job row
// is upserted and the attachment set rewritten, all in one transaction.
func (s *SQLiteStore) PutJob(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO jobs (
			key, id, schema_version, company, driver_name, load_number, bol_number,
			pickup_city, pickup_state, delivery_city, delivery_state,
			description, document_type, status, attempt_count, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			id=excluded.id,
			schema_version=excluded.schema_version,
			company=excluded.company,
			driver_name=excluded.driver_name,
			load_number=excluded.load_number,
			bol_number=excluded.bol_number,
			pickup_city=excluded.pickup_city,
			pickup_state=excluded.pickup_state,
			delivery_city=excluded.delivery_city,
			delivery_state=excluded.delivery_state,
			description=excluded.description,
			document_type=excluded.document_type,
			status=excluded.status,
			attempt_count=excluded.attempt_count,
			last_error=excluded.last_error,
			created_at=excluded.created_at`,
		job.Key,
		job.ID,
		job.SchemaVersion,
		job.Metadata.Company,
		job.Metadata.DriverName,
		job.Metadata.LoadNumber,
		job.Metadata.BOLNumber,
		job.Metadata.PickupCity,
		job.Metadata.PickupState,
		job.Metadata.DeliveryCity,
		job.Metadata.DeliveryState,
		job.Metadata.Description,
		job.Metadata.DocumentType,
		string(job.Status),
		job.AttemptCount,
		job.LastError,
		job.CreatedAt,
	); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM job_attachments WHERE job_key = ?`, job.Key); err != nil {
		return err
	}
	for i, att := range job.Attachments {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO job_attachments (job_key, position, name, mime_type, size_bytes, last_modified, content)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.Key,
			i,
			att.Name,
			att.MIMEType,
			att.Size,
			att.LastModified,
			att.Content,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetJob(ctx context.Context, key int64) (*queue.Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT key, id, schema_version, company, driver_name, load_number, bol_number,
			pickup_city, pickup_state, delivery_city, delivery_state,
			description, document_type, status, attempt_count, last_error, created_at
		 FROM jobs
		 WHERE key = ?`,
		key,
	)

	var job queue.Job
	var status string
	if err := row.Scan(
		&job.Key,
		&job.ID,
		&job.SchemaVersion,
		&job.Metadata.Company,
		&job.Metadata.DriverName,
		&job.Metadata.LoadNumber,
		&job.Metadata.BOLNumber,
		&job.Metadata.PickupCity,
		&job.Metadata.PickupState,
		&job.Metadata.DeliveryCity,
		&job.Metadata.DeliveryState,
		&job.Metadata.Description,
		&job.Metadata.DocumentType,
		&status,
		&job.AttemptCount,
		&job.LastError,
		&job.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, queue.ErrJobNotFound
		}
		return nil, &queue.MalformedJobError{Key: key, Err: err}
	}
	job.Status = queue.Status(status)
	if job.SchemaVersion > queue.SchemaVersion {
		return nil, &queue.MalformedJobError{
			Key: key,
			Err: fmt.Errorf("schema version %d is newer than supported %d", job.SchemaVersion, queue.SchemaVersion),
		}
	}

	attachments, err := s.loadAttachments(ctx, key)
	if err != nil {
		return nil, err
	}
	job.Attachments = attachments
	return &job, nil
}

func (s *SQLiteStore) loadAttachments(ctx context.Context, key int64) ([]bol.Attachment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, mime_type, size_bytes, last_modified, content
		 FROM job_attachments
		 WHERE job_key = ?
		 ORDER BY position ASC`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]bol.Attachment, 0)
	for rows.Next() {
		var att bol.Attachment
		if err := rows.Scan(&att.Name, &att.MIMEType, &att.Size, &att.LastModified, &att.Content); err != nil {
			return nil, &queue.MalformedJobError{Key: key, Err: err}
		}
		ret = append(ret, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteJob removes the job and its attachments. Deleting a missing key is
// not an error.
func (s *SQLiteStore) DeleteJob(ctx context.Context, key int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM job_attachments WHERE job_key = ?`, key); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE key = ?`, key); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListKeys(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]int64, 0)
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		ret = append(ret, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) CountJobs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
