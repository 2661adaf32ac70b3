package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/formportal/internal/middleware"
	"github.com/hitoshi/formportal/internal/model"
)

// createdAtLayouts はクライアント指定の作成日時として受け付ける書式。
// タイムゾーンのない書式はUTCとして解釈する。
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// SubmissionServiceInterface は申請ハンドラーが必要とするサービスインターフェース。
type SubmissionServiceInterface interface {
	// Save は申請を保存し、同じユーザーの既存レコードを置き換える。
	Save(ctx context.Context, ownerID string, in model.SubmissionInput) (*model.Submission, error)
	// GetMine はユーザー自身の申請を取得する。
	GetMine(ctx context.Context, ownerID string) (*model.Submission, error)
	// ListAll は全ユーザーの申請を返す。
	ListAll(ctx context.Context) ([]*model.Submission, error)
}

// SubmissionHandler は申請のHTTPハンドラー。
type SubmissionHandler struct {
	service SubmissionServiceInterface
}

// NewSubmissionHandler はSubmissionHandlerを生成する。
func NewSubmissionHandler(service SubmissionServiceInterface) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// saveSubmissionRequest は申請保存リクエストのボディ。
// フォーム項目はトップレベルに展開される。
type saveSubmissionRequest struct {
	model.SubmissionData
	CreatedAt string `json:"createdAt,omitempty"`
}

// submissionResponse は申請レコードのAPIレスポンス。
type submissionResponse struct {
	DatabaseID string `json:"databaseId"`
	UserID     string `json:"userId"`
	model.SubmissionData
	CreatedAt string    `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Save は認証済みユーザーの申請を保存する。
// POST /submissions
func (h *SubmissionHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req saveSubmissionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	in := model.SubmissionInput{Data: req.SubmissionData}
	if req.CreatedAt != "" {
		createdAt, ok := parseCreatedAt(req.CreatedAt)
		if !ok {
			handleServiceError(w, model.NewValidationError("invalid fields: createdAt: datetime"))
			return
		}
		in.CreatedAt = &createdAt
		in.CreatedAtText = req.CreatedAt
	}

	saved, err := h.service.Save(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubmissionResponse(saved))
}

// GetMine は認証済みユーザー自身の申請を返す。
// GET /submissions/me
func (h *SubmissionHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	s, err := h.service.GetMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubmissionResponse(s))
}

// ListAll は全ユーザーの申請を返す。
// GET /submissions
func (h *SubmissionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]submissionResponse, 0, len(all))
	for _, s := range all {
		resp = append(resp, toSubmissionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseCreatedAt(v string) (time.Time, bool) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toSubmissionResponse はレコードを応答に変換する。
// createdAtはクライアントが送った文字列があればそのまま返す。
func toSubmissionResponse(s *model.Submission) submissionResponse {
	createdAt := s.CreatedAtText
	if createdAt == "" {
		createdAt = s.CreatedAt.Format(time.RFC3339Nano)
	}
	return submissionResponse{
		DatabaseID:     s.DatabaseID,
		UserID:         s.UserID,
		SubmissionData: s.SubmissionData,
		CreatedAt:      createdAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
