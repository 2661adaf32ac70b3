package repository

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/formportal/internal/database"
	"github.com/hitoshi/formportal/internal/model"
)

// testSchema はリポジトリテスト専用のスキーマ。
// databaseパッケージのテストはpublicスキーマを作り直すため分けておく。
const testSchema = "formportal_repo_test"

// setupPostgres はTEST_DATABASE_URLのデータベースに専用スキーマを作り、
// マイグレーションを適用した接続を返す。未設定の場合はスキップする。
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	baseURL := os.Getenv("TEST_DATABASE_URL")
	if baseURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	admin, err := sql.Open("postgres", baseURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer admin.Close()
	if err := admin.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := admin.Exec(`DROP SCHEMA IF EXISTS ` + testSchema + ` CASCADE; CREATE SCHEMA ` + testSchema); err != nil {
		t.Fatalf("スキーマの作成に失敗: %v", err)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("TEST_DATABASE_URL はURL形式で指定してください: %v", err)
	}
	q := u.Query()
	q.Set("search_path", testSchema)
	u.RawQuery = q.Encode()
	schemaURL := u.String()

	if _, err := database.RunMigrations(schemaURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(schemaURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		if cleanup, err := sql.Open("postgres", baseURL); err == nil {
			cleanup.Exec(`DROP SCHEMA IF EXISTS ` + testSchema + ` CASCADE`)
			cleanup.Close()
		}
	})
	return db
}

// createTestUser は外部キー制約を満たすためのユーザーを作成する。
func createTestUser(t *testing.T, repo *PostgresUserRepo, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

// 本テストは全て1つのスキーマを共有するため、サブテストとして順に実行する。
func TestPostgresRepos(t *testing.T) {
	db := setupPostgres(t)
	users := NewPostgresUserRepo(db)
	sessions := NewPostgresSessionRepo(db)
	submissions := NewPostgresSubmissionRepo(db)
	uploads := NewPostgresUploadRepo(db)
	ctx := context.Background()

	t.Run("user create and find", func(t *testing.T) {
		u := createTestUser(t, users, "find@x.com")

		byEmail, err := users.FindByEmail(ctx, "find@x.com")
		if err != nil || byEmail == nil {
			t.Fatalf("FindByEmail() = %v, %v", byEmail, err)
		}
		if byEmail.ID != u.ID || byEmail.FirstName != "Ada" || byEmail.PasswordHash != "hash" {
			t.Errorf("user = %+v", byEmail)
		}
		if !byEmail.CreatedAt.Equal(u.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", byEmail.CreatedAt, u.CreatedAt)
		}

		byID, err := users.FindByID(ctx, u.ID)
		if err != nil || byID == nil || byID.Email != "find@x.com" {
			t.Errorf("FindByID() = %+v, %v", byID, err)
		}

		// 大文字小文字は区別する
		if got, err := users.FindByEmail(ctx, "FIND@x.com"); err != nil || got != nil {
			t.Errorf("FindByEmail(upper) = %+v, %v, want nil", got, err)
		}
		if got, err := users.FindByID(ctx, uuid.New().String()); err != nil || got != nil {
			t.Errorf("FindByID(unknown) = %+v, %v, want nil", got, err)
		}
	})

	t.Run("duplicate email is ErrDuplicate", func(t *testing.T) {
		createTestUser(t, users, "dup@x.com")

		err := users.Create(ctx, &model.User{
			ID: uuid.New().String(), Email: "dup@x.com", PasswordHash: "h", CreatedAt: time.Now(),
		})
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("err = %v, want ErrDuplicate", err)
		}
	})

	t.Run("long names are stored", func(t *testing.T) {
		long := strings.Repeat("é", 1000)
		u := &model.User{
			ID: uuid.New().String(), Email: "long@x.com", FirstName: long, LastName: long,
			PasswordHash: "h", CreatedAt: time.Now(),
		}
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, _ := users.FindByID(ctx, u.ID)
		if got == nil || got.FirstName != long {
			t.Error("long first name was not round-tripped")
		}
	})

	t.Run("mark email verified", func(t *testing.T) {
		u := createTestUser(t, users, "verify@x.com")

		for i := 0; i < 2; i++ {
			ok, err := users.MarkEmailVerified(ctx, u.ID)
			if err != nil || !ok {
				t.Fatalf("MarkEmailVerified() #%d = %v, %v, want true", i+1, ok, err)
			}
		}
		got, _ := users.FindByID(ctx, u.ID)
		if got == nil || !got.IsEmailVerified {
			t.Error("user should be verified")
		}

		ok, err := users.MarkEmailVerified(ctx, uuid.New().String())
		if err != nil || ok {
			t.Errorf("MarkEmailVerified(unknown) = %v, %v, want false", ok, err)
		}
	})

	t.Run("expired session is still found", func(t *testing.T) {
		u := createTestUser(t, users, "session@x.com")
		now := time.Now().UTC().Truncate(time.Microsecond)

		expired := &model.Session{
			AccessToken: "expired-token", RefreshToken: "r1", TokenType: model.TokenTypeBearer,
			UserID: u.ID, ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
		}
		active := &model.Session{
			AccessToken: "active-token", RefreshToken: "r2", TokenType: model.TokenTypeBearer,
			UserID: u.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}
		for _, s := range []*model.Session{expired, active} {
			if err := sessions.Create(ctx, s); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
		}

		got, err := sessions.FindByAccessToken(ctx, "expired-token")
		if err != nil || got == nil {
			t.Fatalf("FindByAccessToken() = %v, %v, want the expired session", got, err)
		}
		if !got.IsExpired(now) || !got.ExpiresAt.Equal(expired.ExpiresAt) || got.UserID != u.ID {
			t.Errorf("session = %+v", got)
		}

		deleted, err := sessions.DeleteExpired(ctx, now)
		if err != nil || deleted != 1 {
			t.Errorf("DeleteExpired() = %d, %v, want 1", deleted, err)
		}
		if got, _ := sessions.FindByAccessToken(ctx, "expired-token"); got != nil {
			t.Error("expired session should be deleted")
		}

		if err := sessions.DeleteByAccessToken(ctx, "active-token"); err != nil {
			t.Fatalf("DeleteByAccessToken() error = %v", err)
		}
		if got, _ := sessions.FindByAccessToken(ctx, "active-token"); got != nil {
			t.Error("active session should be deleted")
		}
		if got, err := sessions.FindByAccessToken(ctx, "unknown"); err != nil || got != nil {
			t.Errorf("FindByAccessToken(unknown) = %+v, %v, want nil", got, err)
		}
	})

	t.Run("submission put replaces without merge", func(t *testing.T) {
		u := createTestUser(t, users, "submit@x.com")
		now := time.Now().UTC().Truncate(time.Microsecond)

		first := &model.Submission{DatabaseID: uuid.New().String(), UserID: u.ID, CreatedAt: now, UpdatedAt: now}
		first.FirstName = strings.Repeat("n", 300)
		first.Nationality = "moroccan"
		first.Email = "submit@x.com"
		first.Choice1 = model.SchoolChoice{SchoolName: "ECC", AcademicPath: "CS", Electives: strPtr("Logic")}
		first.ResidencePermitURL = strPtr("/static/uploads/s/permit/p.pdf")
		first.CreatedAtText = "2024-05-01T10:00:00.123456"
		if err := submissions.Put(ctx, first); err != nil {
			t.Fatalf("Put(first) error = %v", err)
		}

		got, err := submissions.FindByUserID(ctx, u.ID)
		if err != nil || got == nil {
			t.Fatalf("FindByUserID() = %v, %v", got, err)
		}
		if got.FirstName != first.FirstName || got.CreatedAtText != first.CreatedAtText {
			t.Errorf("first = %+v", got)
		}
		if got.Choice1.Electives == nil || *got.Choice1.Electives != "Logic" || got.Choice1.CareerPath != nil {
			t.Errorf("choice1 = %+v", got.Choice1)
		}
		if got.ResidencePermitURL == nil || *got.ResidencePermitURL != "/static/uploads/s/permit/p.pdf" {
			t.Errorf("ResidencePermitURL = %v", got.ResidencePermitURL)
		}

		later := now.Add(time.Minute)
		second := &model.Submission{DatabaseID: uuid.New().String(), UserID: u.ID, CreatedAt: later, UpdatedAt: later}
		second.FirstName = "Second"
		second.Nationality = "other"
		second.Email = "submit@x.com"
		second.Choice1 = model.SchoolChoice{SchoolName: "GEC", AcademicPath: "Math"}
		if err := submissions.Put(ctx, second); err != nil {
			t.Fatalf("Put(second) error = %v", err)
		}

		got, err = submissions.FindByUserID(ctx, u.ID)
		if err != nil || got == nil {
			t.Fatalf("FindByUserID() = %v, %v", got, err)
		}
		if got.DatabaseID != second.DatabaseID || got.FirstName != "Second" || got.Nationality != "other" {
			t.Errorf("second = %+v", got)
		}
		if got.ResidencePermitURL != nil || got.Choice1.Electives != nil || got.CreatedAtText != "" {
			t.Errorf("fields from the first record were merged: %+v", got)
		}
		if !got.CreatedAt.Equal(later) || !got.UpdatedAt.Equal(later) {
			t.Errorf("timestamps = (%v, %v), want %v", got.CreatedAt, got.UpdatedAt, later)
		}

		all, err := submissions.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		count := 0
		for _, s := range all {
			if s.UserID == u.ID {
				count++
			}
		}
		if count != 1 {
			t.Errorf("records for user = %d, want 1", count)
		}
	})

	t.Run("submission missing is nil", func(t *testing.T) {
		got, err := submissions.FindByUserID(ctx, uuid.New().String())
		if err != nil || got != nil {
			t.Errorf("FindByUserID(unknown) = %+v, %v, want nil", got, err)
		}
	})

	t.Run("upload round trip", func(t *testing.T) {
		u := &model.Upload{
			ID:           uuid.New().String(),
			OwnerEmail:   "a@x.com",
			Label:        strings.Repeat("l", 300),
			SubmissionID: strings.Repeat("s", 300),
			Filename:     "cv.pdf",
			ContentType:  "application/pdf",
			Size:         4,
			Content:      []byte{0x25, 0x00, 0xff, 0x0a},
			CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := uploads.Create(ctx, u); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := uploads.FindByID(ctx, u.ID)
		if err != nil || got == nil {
			t.Fatalf("FindByID() = %v, %v", got, err)
		}
		if got.Label != u.Label || got.SubmissionID != u.SubmissionID || string(got.Content) != string(u.Content) {
			t.Errorf("upload = %+v", got)
		}
		if got, err := uploads.FindByID(ctx, uuid.New().String()); err != nil || got != nil {
			t.Errorf("FindByID(unknown) = %+v, %v, want nil", got, err)
		}
	})
}
