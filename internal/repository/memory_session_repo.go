package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/formportal/internal/model"
)

// MemorySessionRepo はプロセス内メモリを使用したセッションリポジトリ。
// アクセストークンをキーとして保持する。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *session
	r.sessions[cp.AccessToken] = &cp
	return nil
}

// FindByAccessToken はアクセストークンでセッションを取得する。期限切れでも返す。
func (r *MemorySessionRepo) FindByAccessToken(_ context.Context, token string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// DeleteByAccessToken は指定アクセストークンのセッションを削除する。
func (r *MemorySessionRepo) DeleteByAccessToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

// DeleteExpired はnow時点で期限切れのセッションを全て削除する。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for token, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

// Count は保持しているセッション数を返す。テスト用。
func (r *MemorySessionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
