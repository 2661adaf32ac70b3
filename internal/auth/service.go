// Package auth はBearerセッションの発行と検証を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/formportal/internal/model"
	"github.com/hitoshi/formportal/internal/repository"
)

// DefaultSessionTTL はセッションの既定の有効期間。
const DefaultSessionTTL = 24 * time.Hour

// UserFinder はセッションに紐づくユーザーの検索に必要なインターフェース。
// user.Serviceの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Recorder はセッション操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordSessionIssued()
	RecordSessionExpired()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration    // セッション有効期間。0の場合はDefaultSessionTTL
	Now        func() time.Time // 現在時刻の取得関数。nilの場合はtime.Now
}

// Service はセッションの発行と解決を提供する。
// 1ユーザーが同時に複数の有効なセッションを持つことを許す。
// 失効（revoke）とリフレッシュトークンの交換は提供しない。
type Service struct {
	sessionRepo repository.SessionRepository
	users       UserFinder
	recorder    Recorder
	config      ServiceConfig
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	sessionRepo repository.SessionRepository,
	users UserFinder,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		sessionRepo: sessionRepo,
		users:       users,
		recorder:    recorder,
		config:      config,
	}
}

// Issue は指定ユーザーのセッションを発行し永続化する。
// アクセストークンとリフレッシュトークンは独立に生成する。
func (s *Service) Issue(ctx context.Context, userID string) (*model.Session, error) {
	accessToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.config.Now()
	session := &model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    model.TokenTypeBearer,
		UserID:       userID,
		ExpiresAt:    now.Add(s.config.SessionTTL),
		CreatedAt:    now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSessionIssued()
	}

	slog.Info("session issued",
		slog.String("user_id", userID),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return session, nil
}

// Resolve はアクセストークンから認証済みユーザーを解決する。
//
//   - トークンが存在しない場合はUNAUTHENTICATED
//   - 現在時刻がExpiresAt以降の場合はセッションを削除してTOKEN_EXPIRED
//   - 紐づくユーザーが存在しない場合はUNAUTHENTICATED
//
// 期限切れは解決時に遅延検出する。
func (s *Service) Resolve(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, model.NewUnauthenticatedError("Invalid or expired token")
	}

	session, err := s.sessionRepo.FindByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthenticatedError("Invalid or expired token")
	}

	if session.IsExpired(s.config.Now()) {
		if err := s.sessionRepo.DeleteByAccessToken(ctx, accessToken); err != nil {
			return nil, fmt.Errorf("failed to evict expired session: %w", err)
		}
		if s.recorder != nil {
			s.recorder.RecordSessionExpired()
		}
		slog.Info("expired session evicted", slog.String("user_id", session.UserID))
		return nil, model.NewTokenExpiredError()
	}

	// セッションのロックは解放済み。ユーザーストアは別途参照する
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthenticatedError("User not found")
	}

	return user, nil
}

// generateToken は暗号的に安全な不透明トークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
