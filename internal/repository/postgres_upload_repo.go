package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/formportal/internal/model"
)

// PostgresUploadRepo はPostgreSQLを使用したアップロードリポジトリ。
// ファイル内容はBYTEA列に格納する。
type PostgresUploadRepo struct {
	db *sql.DB
}

// NewPostgresUploadRepo はPostgresUploadRepoを生成する。
func NewPostgresUploadRepo(db *sql.DB) *PostgresUploadRepo {
	return &PostgresUploadRepo{db: db}
}

// Create はアップロードファイルを保存する。
func (r *PostgresUploadRepo) Create(ctx context.Context, u *model.Upload) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO uploads (id, owner_email, label, submission_id, filename, content_type, size, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.OwnerEmail, u.Label, u.SubmissionID, u.Filename, u.ContentType, u.Size, u.Content, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

// FindByID は保存キーでアップロードファイルを取得する。見つからない場合はnilを返す。
func (r *PostgresUploadRepo) FindByID(ctx context.Context, id string) (*model.Upload, error) {
	u := &model.Upload{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_email, label, submission_id, filename, content_type, size, content, created_at
		 FROM uploads
		 WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.OwnerEmail, &u.Label, &u.SubmissionID, &u.Filename, &u.ContentType, &u.Size, &u.Content, &u.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find upload: %w", err)
	}
	return u, nil
}

// compile-time interface check
var _ UploadRepository = (*PostgresUploadRepo)(nil)
