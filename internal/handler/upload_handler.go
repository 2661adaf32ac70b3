package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/formportal/internal/model"
	"github.com/hitoshi/formportal/internal/upload"
	"github.com/hitoshi/formportal/internal/validation"
)

// DefaultUploadMaxBytes はアップロードリクエストの既定の上限サイズ。
const DefaultUploadMaxBytes int64 = 20 << 20

// multipartMemory はマルチパート解析時にメモリに保持する上限。超過分は一時ファイルに書き出される。
const multipartMemory = 8 << 20

// uploadFormFields はアップロードフォームの必須テキスト項目。
var uploadFormFields = []string{"email", "label", "submissionId"}

// UploadServiceInterface はアップロードハンドラーが必要とするサービスインターフェース。
type UploadServiceInterface interface {
	Store(ctx context.Context, content []byte, meta upload.Metadata) (string, error)
}

// UploadHandler はファイルアップロードのHTTPハンドラー。
type UploadHandler struct {
	service  UploadServiceInterface
	maxBytes int64
}

// NewUploadHandler はUploadHandlerを生成する。
// maxBytesが0以下の場合はDefaultUploadMaxBytesを使う。
func NewUploadHandler(service UploadServiceInterface, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &UploadHandler{
		service:  service,
		maxBytes: maxBytes,
	}
}

// uploadResponse はアップロード成功時のレスポンス。
type uploadResponse struct {
	Success   bool   `json:"success"`
	PublicURL string `json:"public_url"`
	Message   string `json:"message"`
}

// Upload はマルチパートフォームのファイルを保存し、公開URLを返す。
// 上限はリクエストボディ全体に適用する。
// POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handleServiceError(w, model.NewPayloadTooLargeError(h.maxBytes))
			return
		}
		handleServiceError(w, model.NewInvalidRequestError("Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var missing []string
	for _, name := range uploadFormFields {
		if _, ok := r.MultipartForm.Value[name]; !ok {
			missing = append(missing, name+": required")
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		missing = append(missing, "file: required")
	} else {
		defer file.Close()
	}

	if len(missing) > 0 {
		handleServiceError(w, model.NewValidationError("invalid fields: "+strings.Join(missing, ", ")))
		return
	}

	meta := upload.Metadata{
		Email:        r.FormValue("email"),
		Label:        r.FormValue("label"),
		SubmissionID: r.FormValue("submissionId"),
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
	}
	if invalid := invalidUploadFields(meta); len(invalid) > 0 {
		handleServiceError(w, model.NewValidationError("invalid fields: "+strings.Join(invalid, ", ")))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		handleServiceError(w, fmt.Errorf("failed to read uploaded file: %w", err))
		return
	}

	publicURL, err := h.service.Store(r.Context(), content, meta)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		PublicURL: publicURL,
		Message:   "File uploaded successfully",
	})
}

// invalidUploadFields はUTF-8として不正、またはNULを含む項目を返す。
// マルチパートの値はJSONと違いデコード時に置換されない。
func invalidUploadFields(meta upload.Metadata) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"email", meta.Email},
		{"label", meta.Label},
		{"submissionId", meta.SubmissionID},
		{"file.filename", meta.Filename},
		{"file.contentType", meta.ContentType},
	}
	var invalid []string
	for _, f := range fields {
		if !validation.IsText(f.value) {
			invalid = append(invalid, f.name+": utf8text")
		}
	}
	return invalid
}
