package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/formportal/internal/model"
)

// PostgresSubmissionRepo はPostgreSQLを使用した申請リポジトリ。
// 志望校と書類URLはJSONB列に格納する。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

const selectSubmissionColumns = `SELECT database_id, user_id, first_name, last_name, nationality, email,
	choice1, choice2, documents, created_at, updated_at, created_at_text FROM submissions`

// Put は申請を保存する。
// user_idの主キー衝突時は全列をEXCLUDEDで上書きし、以前の内容は残さない。
func (r *PostgresSubmissionRepo) Put(ctx context.Context, s *model.Submission) error {
	choice1, err := json.Marshal(s.Choice1)
	if err != nil {
		return fmt.Errorf("failed to encode choice1: %w", err)
	}
	choice2, err := json.Marshal(s.Choice2)
	if err != nil {
		return fmt.Errorf("failed to encode choice2: %w", err)
	}
	documents, err := json.Marshal(s.Documents)
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO submissions (user_id, database_id, first_name, last_name, nationality, email,
		                          choice1, choice2, documents, created_at, updated_at, created_at_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (user_id) DO UPDATE SET
		   database_id = EXCLUDED.database_id,
		   first_name  = EXCLUDED.first_name,
		   last_name   = EXCLUDED.last_name,
		   nationality = EXCLUDED.nationality,
		   email       = EXCLUDED.email,
		   choice1     = EXCLUDED.choice1,
		   choice2     = EXCLUDED.choice2,
		   documents   = EXCLUDED.documents,
		   created_at  = EXCLUDED.created_at,
		   updated_at  = EXCLUDED.updated_at,
		   created_at_text = EXCLUDED.created_at_text`,
		s.UserID, s.DatabaseID, s.FirstName, s.LastName, s.Nationality, s.Email,
		choice1, choice2, documents, s.CreatedAt, s.UpdatedAt, s.CreatedAtText,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

// FindByUserID はユーザーIDで申請を取得する。見つからない場合はnilを返す。
func (r *PostgresSubmissionRepo) FindByUserID(ctx context.Context, userID string) (*model.Submission, error) {
	row := r.db.QueryRowContext(ctx, selectSubmissionColumns+` WHERE user_id = $1`, userID)
	s, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find submission: %w", err)
	}
	return s, nil
}

// List は全ユーザーの申請を返す。ORDER BYは付けない。
func (r *PostgresSubmissionRepo) List(ctx context.Context) ([]*model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, selectSubmissionColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var results []*model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return results, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	var choice1, choice2, documents []byte
	if err := row.Scan(
		&s.DatabaseID, &s.UserID, &s.FirstName, &s.LastName, &s.Nationality, &s.Email,
		&choice1, &choice2, &documents, &s.CreatedAt, &s.UpdatedAt, &s.CreatedAtText,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(choice1, &s.Choice1); err != nil {
		return nil, fmt.Errorf("failed to decode choice1: %w", err)
	}
	if err := json.Unmarshal(choice2, &s.Choice2); err != nil {
		return nil, fmt.Errorf("failed to decode choice2: %w", err)
	}
	if err := json.Unmarshal(documents, &s.Documents); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return s, nil
}

// compile-time interface check
var _ SubmissionRepository = (*PostgresSubmissionRepo)(nil)
