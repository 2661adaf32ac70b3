package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/formportal/internal/middleware"
	"github.com/hitoshi/formportal/internal/model"
	"github.com/hitoshi/formportal/internal/user"
)

// invalidVerificationToken は確認が常に失敗するメール確認トークン。
// メール送信を行わないため、これ以外のトークンは全て受け付ける。
const invalidVerificationToken = "invalid"

// IdentityServiceInterface は認証ハンドラーが必要とするユーザー管理インターフェース。
type IdentityServiceInterface interface {
	// Register はユーザーを登録する。
	Register(ctx context.Context, in user.RegisterInput) (*model.User, error)
	// Authenticate はメールアドレスとパスワードを照合する。
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	// MarkEmailVerified はユーザーをメール確認済みにする。
	MarkEmailVerified(ctx context.Context, id string) error
}

// SessionIssuer はセッション発行のインターフェース。
type SessionIssuer interface {
	Issue(ctx context.Context, userID string) (*model.Session, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	identities IdentityServiceInterface
	sessions   SessionIssuer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(identities IdentityServiceInterface, sessions SessionIssuer) *AuthHandler {
	return &AuthHandler{
		identities: identities,
		sessions:   sessions,
	}
}

// signupRequest は登録要求。氏名は空文字列も受け付ける。
type signupRequest struct {
	Email     string `json:"email" validate:"required,email,utf8text"`
	FirstName string `json:"first_name" validate:"utf8text"`
	LastName  string `json:"last_name" validate:"utf8text"`
	Password  string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,utf8text"`
	Password string `json:"password" validate:"required"`
}

type verifyConfirmRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetRequestRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// userProfileResponse はユーザー情報のAPIレスポンス。
type userProfileResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

// sessionResponse はセッションのAPIレスポンス。
// expires_atはUNIX秒（小数）で返す。
type sessionResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	TokenType    string              `json:"token_type"`
	User         userProfileResponse `json:"user"`
	ExpiresAt    float64             `json:"expires_at"`
}

// authResponse はサインアップとログインのレスポンス。
type authResponse struct {
	User    userProfileResponse `json:"user"`
	Session sessionResponse     `json:"session"`
}

// Signup はユーザー登録とセッション発行を処理する。
// POST /auth/signup, POST /auth/register
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.identities.Register(r.Context(), user.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.respondWithSession(w, r, u)
}

// Login はメールアドレスとパスワードでのログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.identities.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.respondWithSession(w, r, u)
}

// Me は現在のユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserProfileResponse(u))
}

// VerifyEmail は確認メールの送信要求を処理する。
// メール送信は行わず、呼び出したユーザーをその場で確認済みにする。
// POST /auth/verify-email, POST /auth/resend-verification
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.identities.MarkEmailVerified(r.Context(), u.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("verification email requested", slog.String("user_id", u.ID))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent"})
}

// ConfirmVerifyEmail はメール確認トークンの確認を処理する。
// POST /auth/verify-email/confirm
func (h *AuthHandler) ConfirmVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyConfirmRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	h.confirmToken(w, req.Token)
}

// ConfirmVerifyEmailByQuery はクエリパラメータのトークンで確認を処理する。
// GET /auth/verify?token=
func (h *AuthHandler) ConfirmVerifyEmailByQuery(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		handleServiceError(w, model.NewValidationError("invalid fields: token: required"))
		return
	}
	h.confirmToken(w, token)
}

// RequestPasswordReset はパスワードリセットメールの送信要求を受け付ける。
// 登録有無に関わらず同じレスポンスを返す。
// POST /auth/password/reset-request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("password reset requested", slog.String("email", req.Email))
	writeJSON(w, http.StatusOK, messageResponse{Message: "If email exists, reset link sent"})
}

// ResetPassword はパスワードリセットを受け付ける。パスワードは変更しない。
// POST /auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

func (h *AuthHandler) confirmToken(w http.ResponseWriter, token string) {
	if token == invalidVerificationToken {
		handleServiceError(w, model.NewInvalidTokenError())
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified"})
}

// respondWithSession はセッションを発行し、ユーザー情報と共に返す。
func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, u *model.User) {
	session, err := h.sessions.Issue(r.Context(), u.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	profile := toUserProfileResponse(u)
	writeJSON(w, http.StatusOK, authResponse{
		User: profile,
		Session: sessionResponse{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			TokenType:    session.TokenType,
			User:         profile,
			ExpiresAt:    unixSeconds(session.ExpiresAt),
		},
	})
}

// unixSeconds は時刻を小数部付きのUNIX秒に変換する。
func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func toUserProfileResponse(u *model.User) userProfileResponse {
	return userProfileResponse{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}
