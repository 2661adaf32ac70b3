// Package upload はアップロードファイルの受け入れを提供する。
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/formportal/internal/model"
	"github.com/hitoshi/formportal/internal/repository"
)

// PublicPathPrefix は公開URLのパス接頭辞。
const PublicPathPrefix = "/static/uploads"

// unknownFilename はファイル名が空の場合に公開URLへ使う名前。
const unknownFilename = "unknown"

// Recorder はアップロードのメトリクス記録インターフェース。
type Recorder interface {
	RecordUpload(size int64)
}

// Metadata はアップロードに付随するフォーム項目。
type Metadata struct {
	Email        string
	Label        string
	SubmissionID string
	Filename     string
	ContentType  string
}

// Service はアップロードファイルの保存を行うサービス層。
type Service struct {
	repo     repository.UploadRepository
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(repo repository.UploadRepository, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		now:      time.Now,
	}
}

// Store はファイル内容を新しい保存キーで保存し、公開URLを返す。
// 公開URLはsubmissionID・label・filenameから組み立てるため、保存キーとは一致しない。
func (s *Service) Store(ctx context.Context, content []byte, meta Metadata) (string, error) {
	upload := &model.Upload{
		ID:           uuid.New().String(),
		OwnerEmail:   meta.Email,
		Label:        meta.Label,
		SubmissionID: meta.SubmissionID,
		Filename:     meta.Filename,
		ContentType:  meta.ContentType,
		Size:         int64(len(content)),
		Content:      content,
		CreatedAt:    s.now(),
	}

	if err := s.repo.Create(ctx, upload); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordUpload(upload.Size)
	}

	publicURL := PublicURL(meta.SubmissionID, meta.Label, meta.Filename)

	slog.Info("file uploaded",
		slog.String("upload_id", upload.ID),
		slog.String("label", meta.Label),
		slog.Int64("size", upload.Size),
	)

	return publicURL, nil
}

// PublicURL は公開URLのパスを組み立てる。各セグメントはパスエスケープする。
func PublicURL(submissionID, label, filename string) string {
	if filename == "" {
		filename = unknownFilename
	}
	return fmt.Sprintf("%s/%s/%s/%s",
		PublicPathPrefix,
		url.PathEscape(submissionID),
		url.PathEscape(label),
		url.PathEscape(filename),
	)
}
