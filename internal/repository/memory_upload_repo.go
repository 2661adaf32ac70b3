package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/formportal/internal/model"
)

// MemoryUploadRepo はプロセス内メモリを使用したアップロードリポジトリ。
type MemoryUploadRepo struct {
	mu      sync.RWMutex
	uploads map[string]*model.Upload
}

// NewMemoryUploadRepo はMemoryUploadRepoを生成する。
func NewMemoryUploadRepo() *MemoryUploadRepo {
	return &MemoryUploadRepo{
		uploads: make(map[string]*model.Upload),
	}
}

// Create はアップロードファイルを保存する。
// 呼び出し側のバッファを保持しないよう、内容はコピーして格納する。
func (r *MemoryUploadRepo) Create(_ context.Context, upload *model.Upload) error {
	cp := *upload
	cp.Content = append([]byte(nil), upload.Content...)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.uploads[cp.ID] = &cp
	return nil
}

// FindByID は保存キーでアップロードファイルを取得する。見つからない場合はnilを返す。
func (r *MemoryUploadRepo) FindByID(_ context.Context, id string) (*model.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.Content = append([]byte(nil), u.Content...)
	return &cp, nil
}

// compile-time interface check
var _ UploadRepository = (*MemoryUploadRepo)(nil)
