package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/erp-dms/dms-assistant/internal/auth"
	"github.com/erp-dms/dms-assistant/internal/documents"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS user_data (
        user_name TEXT PRIMARY KEY,
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        permissions_json TEXT NOT NULL DEFAULT '{}',
        permissions_last_updated DATETIME NOT NULL,
        remember_me BOOLEAN NOT NULL DEFAULT FALSE
    );

    CREATE TABLE IF NOT EXISTS creation_reports (
        id TEXT PRIMARY KEY, -- UUID
        user_name TEXT NOT NULL,
        category TEXT NOT NULL,
        ref_seq_no INTEGER NOT NULL DEFAULT 0,
        master_saved BOOLEAN NOT NULL,
        master_uncertain BOOLEAN NOT NULL DEFAULT FALSE,
        questions_written INTEGER NOT NULL,
        values_written INTEGER NOT NULL,
        total INTEGER NOT NULL,
        confirmed BOOLEAN NOT NULL,
        failed_step TEXT,
        error TEXT,
        created_at DATETIME NOT NULL,
        resolved_at DATETIME
    );

    CREATE INDEX IF NOT EXISTS idx_creation_reports_open ON creation_reports (resolved_at, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User data methods ("remember me")

func (s *SQLiteStore) SaveUserData(ctx context.Context, u auth.UserData) error {
	permsJSON, err := json.Marshal(u.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO user_data (user_name, is_admin, permissions_json, permissions_last_updated, remember_me)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (user_name) DO UPDATE SET
            is_admin = excluded.is_admin,
            permissions_json = excluded.permissions_json,
            permissions_last_updated = excluded.permissions_last_updated,
            remember_me = excluded.remember_me
    `, u.UserName, u.IsAdmin, string(permsJSON), u.PermissionsLastUpdated.UTC(), u.RememberMe)
	if err != nil {
		return fmt.Errorf("failed to upsert user data: %w", err)
	}
	return nil
}

// LoadUserData returns nil when nothing is remembered for the user.
func (s *SQLiteStore) LoadUserData(ctx context.Context, userName string) (*auth.UserData, error) {
	var u auth.UserData
	var permsJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_name, is_admin, permissions_json, permissions_last_updated, remember_me FROM user_data WHERE user_name = ?",
		userName,
	).Scan(&u.UserName, &u.IsAdmin, &permsJSON, &u.PermissionsLastUpdated, &u.RememberMe)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user data: %w", err)
	}
	if err := json.Unmarshal([]byte(permsJSON), &u.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions for %s: %w", userName, err)
	}
	return &u, nil
}

func (s *SQLiteStore) DeleteUserData(ctx context.Context, userName string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM user_data WHERE user_name = ?", userName); err != nil {
		return fmt.Errorf("failed to delete user data: %w", err)
	}
	return nil
}

// Creation report methods

func (s *SQLiteStore) SaveCreationReport(ctx context.Context, r documents.CreationReport) error {
	stmt, err := s.db.PrepareContext(ctx, `
        INSERT INTO creation_reports (id, user_name, category, ref_seq_no, master_saved, master_uncertain,
            questions_written, values_written, total, confirmed, failed_step, error, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare report insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, uuid.NewString(), r.UserName, r.Category, r.RefSeqNo, r.MasterSaved, r.MasterUncertain,
		r.QuestionsWritten, r.ValuesWritten, r.Total, r.Confirmed, string(r.FailedStep), r.Err, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to execute report insert: %w", err)
	}
	return nil
}

// CreationReports lists reports oldest first. Resolved reports are included
// only when includeResolved is set.
func (s *SQLiteStore) CreationReports(ctx context.Context, includeResolved bool) ([]ReportRecord, error) {
	query := `
        SELECT id, user_name, category, ref_seq_no, master_saved, master_uncertain, questions_written, values_written,
            total, confirmed, failed_step, error, created_at, resolved_at
        FROM creation_reports
    `
	if !includeResolved {
		query += " WHERE resolved_at IS NULL"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query creation reports: %w", err)
	}
	defer rows.Close()

	reports := []ReportRecord{}
	for rows.Next() {
		var rec ReportRecord
		var failedStep, errText sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.UserName, &rec.Category, &rec.RefSeqNo, &rec.MasterSaved, &rec.MasterUncertain,
			&rec.QuestionsWritten, &rec.ValuesWritten, &rec.Total, &rec.Confirmed,
			&failedStep, &errText, &rec.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan creation report row: %w", err)
		}
		rec.FailedStep = documents.Step(failedStep.String)
		rec.Err = errText.String
		if resolvedAt.Valid {
			rec.ResolvedAt = &resolvedAt.Time
		}
		reports = append(reports, rec)
	}
	return reports, rows.Err()
}

func (s *SQLiteStore) ResolveCreationReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE creation_reports SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL",
		s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve creation report: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("creation report %s: %w", id, ErrNotFound)
	}
	return nil
}
