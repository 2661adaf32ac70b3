// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 期限切れの検出自体はauth.Service.Resolveが遅延的に行うため、
// このジョブは一度も参照されずに残ったセッションの回収だけを担う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredSessionDeleter は期限切れセッションの一括削除を抽象化するインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Recorder は削除件数のメトリクス記録インターフェース。
type Recorder interface {
	RecordSessionsReaped(count int64)
}

// SessionReaper は期限切れセッションを定期的に削除するジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type SessionReaper struct {
	sessions ExpiredSessionDeleter
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionReaper は新しいSessionReaperを生成する。recorderはnilでもよい。
func NewSessionReaper(sessions ExpiredSessionDeleter, recorder Recorder, logger *slog.Logger) *SessionReaper {
	return &SessionReaper{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は現在時刻時点で期限切れのセッションを1回削除し、削除件数を返す。
func (j *SessionReaper) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsReaped(deleted)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)

	return deleted, nil
}

// Start はinterval間隔でRunを繰り返す。
// コンテキストがキャンセルされるまでブロックする。
func (j *SessionReaper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("session reaper started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			// エラーはRun内でログ出力済み。次の周期で再試行する
			_, _ = j.Run(ctx)
		}
	}
}
