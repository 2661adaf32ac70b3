package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/formportal/internal/model"
)

// MemorySubmissionRepo はプロセス内メモリを使用した申請リポジトリ。
// ユーザーIDをキーとして高々1件を保持する。
type MemorySubmissionRepo struct {
	mu          sync.RWMutex
	submissions map[string]*model.Submission
}

// NewMemorySubmissionRepo はMemorySubmissionRepoを生成する。
func NewMemorySubmissionRepo() *MemorySubmissionRepo {
	return &MemorySubmissionRepo{
		submissions: make(map[string]*model.Submission),
	}
}

// Put は申請を保存する。既存レコードはマージせずに丸ごと置き換える。
func (r *MemorySubmissionRepo) Put(_ context.Context, submission *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.submissions[submission.UserID] = cloneSubmission(submission)
	return nil
}

// FindByUserID はユーザーIDで申請を取得する。見つからない場合はnilを返す。
func (r *MemorySubmissionRepo) FindByUserID(_ context.Context, userID string) (*model.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.submissions[userID]
	if !ok {
		return nil, nil
	}
	return cloneSubmission(s), nil
}

// List は全ユーザーの申請を返す。mapの走査順のため順序は不定。
func (r *MemorySubmissionRepo) List(_ context.Context) ([]*model.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*model.Submission, 0, len(r.submissions))
	for _, s := range r.submissions {
		results = append(results, cloneSubmission(s))
	}
	return results, nil
}

// cloneSubmission は任意項目のポインタも含めて申請を複製する。
func cloneSubmission(s *model.Submission) *model.Submission {
	cp := *s
	for _, p := range []**string{
		&cp.Choice1.CareerPath, &cp.Choice1.Electives,
		&cp.Choice2.CareerPath, &cp.Choice2.Electives,
		&cp.ApplicationFormGecURL, &cp.S7TranscriptsURL, &cp.S8TranscriptsURL,
		&cp.ResidencePermitURL, &cp.MotivationLetterChoice2URL, &cp.OtherFilesPdfURL,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return &cp
}

// compile-time interface check
var _ SubmissionRepository = (*MemorySubmissionRepo)(nil)
