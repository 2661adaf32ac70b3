package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/formportal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	StatusObserver     middleware.StatusObserver
	IdentityResolver   middleware.IdentityResolver
	CORSAllowedOrigins []string

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	IdentityService IdentityServiceInterface
	SessionIssuer   SessionIssuer

	// 申請
	SubmissionService SubmissionServiceInterface

	// アップロード
	UploadService  UploadServiceInterface
	UploadMaxBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Bearer)
//
// Bearerは認証が必要なルートのグループにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.IdentityService, deps.SessionIssuer)
	submissionHandler := NewSubmissionHandler(deps.SubmissionService)
	uploadHandler := NewUploadHandler(deps.UploadService, deps.UploadMaxBytes)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	bearer := middleware.NewBearerMiddleware(deps.IdentityResolver)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/register", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/verify-email/confirm", authHandler.ConfirmVerifyEmail)
		r.Get("/verify", authHandler.ConfirmVerifyEmailByQuery)
		r.Post("/password/reset-request", authHandler.RequestPasswordReset)
		r.Post("/password/reset", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Get("/me", authHandler.Me)
			r.Post("/verify-email", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.VerifyEmail)
		})
	})

	r.Post("/api/upload", uploadHandler.Upload)

	// --- 認証が必要なルート ---
	r.Route("/submissions", func(r chi.Router) {
		r.Use(bearer)
		r.Post("/", submissionHandler.Save)
		r.Get("/", submissionHandler.ListAll)
		r.Get("/me", submissionHandler.GetMine)
	})

	return r
}
