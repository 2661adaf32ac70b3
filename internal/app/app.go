package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/formportal/internal/auth"
	"github.com/hitoshi/formportal/internal/config"
	"github.com/hitoshi/formportal/internal/database"
	"github.com/hitoshi/formportal/internal/handler"
	"github.com/hitoshi/formportal/internal/logger"
	"github.com/hitoshi/formportal/internal/metrics"
	"github.com/hitoshi/formportal/internal/repository"
	"github.com/hitoshi/formportal/internal/submission"
	"github.com/hitoshi/formportal/internal/upload"
	"github.com/hitoshi/formportal/internal/user"
	"github.com/hitoshi/formportal/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, nil)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再設定する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend", backendName(cfg)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stores は各ストアのリポジトリ実装をまとめる。
type stores struct {
	users       repository.UserRepository
	sessions    repository.SessionRepository
	submissions repository.SubmissionRepository
	uploads     repository.UploadRepository
}

func memoryStores() stores {
	return stores{
		users:       repository.NewMemoryUserRepo(),
		sessions:    repository.NewMemorySessionRepo(),
		submissions: repository.NewMemorySubmissionRepo(),
		uploads:     repository.NewMemoryUploadRepo(),
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		users:       repository.NewPostgresUserRepo(db),
		sessions:    repository.NewPostgresSessionRepo(db),
		submissions: repository.NewPostgresSubmissionRepo(db),
		uploads:     repository.NewPostgresUploadRepo(db),
	}
}

// components はワイヤリング済みの依存関係。
type components struct {
	handler http.Handler
	reaper  *cleanup.SessionReaper
	db      *sql.DB // インメモリ構成ではnil
}

// Close はDB接続を閉じる。
func (c *components) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// build は設定に従ってストア、サービス、ルーターを組み立てる。
// DATABASE_URLが空の場合はインメモリストアを使い、プロセス終了で全データが失われる。
func build(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}

	// 1. ストアの初期化
	var s stores
	if cfg.UsesDatabase() {
		db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		slog.Info("database connection established")
		c.db = db
		s = postgresStores(db)
	} else {
		slog.Warn("DATABASE_URL is not set, using in-memory stores")
		s = memoryStores()
	}

	// 2. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	userService := user.NewService(s.users, user.NewArgon2Hasher(), collector)
	authService := auth.NewService(s.sessions, userService, collector, auth.ServiceConfig{
		SessionTTL: cfg.SessionTTL,
	})
	submissionService := submission.NewService(s.submissions, collector)
	uploadService := upload.NewService(s.uploads, collector)

	c.reaper = cleanup.NewSessionReaper(s.sessions, collector, slog.Default())

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:             slog.Default(),
		StatusObserver:     collector,
		IdentityResolver:   authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsHandler:     metrics.Handler(reg),

		IdentityService:   userService,
		SessionIssuer:     authService,
		SubmissionService: submissionService,
		UploadService:     uploadService,
		UploadMaxBytes:    cfg.UploadMaxBytes,
	}
	// nilの*sql.DBをインターフェースに入れないよう、DB構成時のみ設定する
	if c.db != nil {
		deps.HealthChecker = c.db
	}

	c.handler = handler.NewRouter(deps)
	return c, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer c.Close()

	// 期限切れセッションの定期削除（SESSION_SWEEP_INTERVALが0の場合は起動しない）
	if cfg.SessionSweepInterval > 0 {
		go c.reaper.Start(ctx, cfg.SessionSweepInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.UsesDatabase() {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func backendName(cfg *config.Config) string {
	if cfg.UsesDatabase() {
		return "postgres"
	}
	return "memory"
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
