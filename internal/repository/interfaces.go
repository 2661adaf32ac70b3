// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/formportal/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// UserRepository.Createでメールアドレスが既に登録済みの場合に返される。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザー（Identity）データの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。
	// 大文字小文字を区別した完全一致で比較する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// MarkEmailVerified はメール確認済みフラグを立てる。
	// ユーザーが存在しない場合はfalseを返す。既に確認済みでもtrueを返す。
	MarkEmailVerified(ctx context.Context, id string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByAccessToken はアクセストークンでセッションを取得する。
	// 期限切れのセッションもそのまま返す。期限判定は呼び出し側が行う。
	// 見つからない場合はnilを返す。
	FindByAccessToken(ctx context.Context, token string) (*model.Session, error)

	// DeleteByAccessToken は指定アクセストークンのセッションを削除する。
	DeleteByAccessToken(ctx context.Context, token string) error

	// DeleteExpired はnow時点で期限切れのセッションを全て削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SubmissionRepository は申請データの永続化インターフェース。
// ユーザーIDごとに高々1件を保持する。
type SubmissionRepository interface {
	// Put は申請を保存する。同じユーザーIDの既存レコードは無条件に置き換える。
	Put(ctx context.Context, submission *model.Submission) error

	// FindByUserID はユーザーIDで申請を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Submission, error)

	// List は全ユーザーの申請を返す。順序は保証しない。
	List(ctx context.Context) ([]*model.Submission, error)
}

// UploadRepository はアップロードファイルの永続化インターフェース。
type UploadRepository interface {
	// Create はアップロードファイルを保存する。
	Create(ctx context.Context, upload *model.Upload) error

	// FindByID は保存キーでアップロードファイルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Upload, error)
}
