// Package user はユーザー（Identity）管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/formportal/internal/model"
	"github.com/hitoshi/formportal/internal/repository"
)

// Recorder はユーザー操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordSignup()
	RecordLogin(success bool)
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service はユーザー管理のサービス層。
// 登録、認証情報の照合、メール確認状態の更新を提供する。
type Service struct {
	repo     repository.UserRepository
	hasher   PasswordHasher
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(repo repository.UserRepository, hasher PasswordHasher, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		recorder: recorder,
		now:      time.Now,
	}
}

// Register はユーザーを登録する。
// メールアドレスが登録済みの場合はEMAIL_ALREADY_REGISTEREDを返す。
// メールアドレスは正規化せず、大文字小文字を区別して扱う。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	existing, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyRegisteredError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	// FindByEmailとCreateの間に同じメールアドレスが登録された場合もここで弾かれる
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailAlreadyRegisteredError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSignup()
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Authenticate はメールアドレスとパスワードを照合する。
// 未登録とパスワード不一致はどちらもINVALID_CREDENTIALSを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		s.recordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.recordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	s.recordLogin(true)
	return user, nil
}

// MarkEmailVerified はユーザーをメール確認済みにする。
// 冪等で、既に確認済みでもエラーにならない。ユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) MarkEmailVerified(ctx context.Context, id string) error {
	found, err := s.repo.MarkEmailVerified(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if !found {
		return model.NewUserNotFoundError()
	}

	slog.Info("email marked verified", slog.String("user_id", id))
	return nil
}

// FindByID は指定IDのユーザーを取得する。
// 見つからない場合はnilを返し、エラーにはしない。扱いは呼び出し側が決める。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *Service) recordLogin(success bool) {
	if s.recorder != nil {
		s.recorder.RecordLogin(success)
	}
}
