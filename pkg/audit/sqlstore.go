package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// SQLStore stores records in a MySQL table with ordered IDs.
// Table schema:
// CREATE TABLE IF NOT EXISTS job_audit (
//   id BIGINT AUTO_INCREMENT PRIMARY KEY,
//   job_id VARCHAR(64) NOT NULL,
//   queue VARCHAR(128) NOT NULL,
//   entity_id VARCHAR(64) NULL,
//   attempt INT NOT NULL,
//   outcome VARCHAR(32) NOT NULL,
//   detail TEXT NULL,
//   at DATETIME(6) NOT NULL,
//   KEY idx_job_id (job_id),
//   KEY idx_at (at)
// );

type SQLStore struct {
	conn *sql.DB
}

func NewSQLStore(dsn string) (*SQLStore, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(10 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping audit store: %w", err)
	}

	s := &SQLStore{conn: conn}
	if err := s.ensureTable(); err != nil {
		// Best effort; don't crash app start
		fmt.Printf("[audit] ensure table error: %v\n", err)
	}
	return s, nil
}

func (s *SQLStore) ensureTable() error {
	qry := `CREATE TABLE IF NOT EXISTS job_audit (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		job_id VARCHAR(64) NOT NULL,
		queue VARCHAR(128) NOT NULL,
		entity_id VARCHAR(64) NULL,
		attempt INT NOT NULL,
		outcome VARCHAR(32) NOT NULL,
		detail TEXT NULL,
		at DATETIME(6) NOT NULL,
		KEY idx_job_id (job_id),
		KEY idx_at (at)
	)`
	_, err := s.conn.Exec(qry)
	return err
}

func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	var entity any
	if rec.EntityID != "" {
		entity = rec.EntityID
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO job_audit (job_id, queue, entity_id, attempt, outcome, detail, at) VALUES (?,?,?,?,?,?,?)`,
		rec.JobID, rec.Queue, entity, rec.Attempt, rec.Outcome, rec.Detail, at)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *SQLStore) ListByJob(ctx context.Context, jobID string) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, job_id, queue, entity_id, attempt, outcome, detail, at FROM job_audit WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, job_id, queue, entity_id, attempt, outcome, detail, at FROM job_audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLStore) Close() error { return s.conn.Close() }

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var entity, detail sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Queue, &entity, &rec.Attempt, &rec.Outcome, &detail, &rec.At); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if entity.Valid {
			rec.EntityID = entity.String
		}
		if detail.Valid {
			rec.Detail = detail.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
