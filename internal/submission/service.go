// Package submission はユーザーごとの申請レコード管理を提供する。
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/formportal/internal/model"
	"github.com/hitoshi/formportal/internal/repository"
)

// Recorder は申請保存のメトリクス記録インターフェース。
type Recorder interface {
	RecordSubmissionSaved()
}

// Service は申請レコードのサービス層。
type Service struct {
	repo     repository.SubmissionRepository
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(repo repository.SubmissionRepository, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		now:      time.Now,
	}
}

// Save はownerIDの申請を保存する。
// 既存レコードはマージせずに置き換え、DatabaseIDは保存のたびに振り直す。
// CreatedAtは入力に指定があればその値（と元の文字列）、なければ保存時刻を使う。
func (s *Service) Save(ctx context.Context, ownerID string, in model.SubmissionInput) (*model.Submission, error) {
	now := s.now()

	createdAt, createdAtText := now, ""
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		createdAt, createdAtText = *in.CreatedAt, in.CreatedAtText
	}

	submission := &model.Submission{
		DatabaseID:     uuid.New().String(),
		UserID:         ownerID,
		SubmissionData: in.Data,
		CreatedAt:      createdAt,
		UpdatedAt:      now,
		CreatedAtText:  createdAtText,
	}

	if err := s.repo.Put(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSubmissionSaved()
	}

	slog.Info("submission saved",
		slog.String("user_id", ownerID),
		slog.String("database_id", submission.DatabaseID),
	)

	return submission, nil
}

// GetMine はownerIDの申請を返す。存在しない場合はSUBMISSION_NOT_FOUNDを返す。
func (s *Service) GetMine(ctx context.Context, ownerID string) (*model.Submission, error) {
	submission, err := s.repo.FindByUserID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find submission: %w", err)
	}
	if submission == nil {
		return nil, model.NewSubmissionNotFoundError()
	}
	return submission, nil
}

// ListAll は全ユーザーの申請を返す。順序は保証しない。
// TODO: 管理者ロールを導入したら呼び出し元を管理者に限定する。
func (s *Service) ListAll(ctx context.Context) ([]*model.Submission, error) {
	submissions, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}
