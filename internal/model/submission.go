// Package model はドメインモデルを定義する。
package model

import "time"

// SchoolChoice は志望校の選択内容を表す。
type SchoolChoice struct {
	SchoolName   string  `json:"schoolName" validate:"required,utf8text"`
	AcademicPath string  `json:"academicPath" validate:"required,utf8text"`
	CareerPath   *string `json:"careerPath" validate:"omitempty,utf8text"`
	Electives    *string `json:"electives" validate:"omitempty,utf8text"`
}

// Documents は提出書類のURL一覧を表す。
// JSONフィールド名はフロントエンドとの互換性のため変更しないこと。
// 任意項目は未指定の場合もnullとして出力する。
type Documents struct {
	ApplicationFormEccURL      string  `json:"applicationFormEccUrl" validate:"required,utf8text"`
	ApplicationFormGecURL      *string `json:"applicationFormGecUrl" validate:"omitempty,utf8text"`
	ResumeURL                  string  `json:"resumeUrl" validate:"required,utf8text"`
	S5TranscriptsURL           string  `json:"s5TranscriptsUrl" validate:"required,utf8text"`
	S6TranscriptsURL           string  `json:"s6TranscriptsUrl" validate:"required,utf8text"`
	S7TranscriptsURL           *string `json:"s7TranscriptsUrl" validate:"omitempty,utf8text"`
	S8TranscriptsURL           *string `json:"s8TranscriptsUrl" validate:"omitempty,utf8text"`
	ResidencePermitURL         *string `json:"residencePermitUrl" validate:"omitempty,utf8text"`
	MotivationLetterChoice1URL string  `json:"motivationLetterChoice1Url" validate:"required,utf8text"`
	MotivationLetterChoice2URL *string `json:"motivationLetterChoice2Url" validate:"omitempty,utf8text"`
	FrenchLevelCertificateURL  string  `json:"frenchLevelCertificateUrl" validate:"required,utf8text"`
	EnglishLevelCertificateURL string  `json:"englishLevelCertificateUrl" validate:"required,utf8text"`
	PasseportURL               string  `json:"passeportUrl" validate:"required,utf8text"`
	OtherFilesPdfURL           *string `json:"otherFilesPdfUrl" validate:"omitempty,utf8text"`
}

// SubmissionData は申請フォームの入力内容を表す。
// 保存時にはこの内容がそのまま置き換えられ、部分更新は行わない。
type SubmissionData struct {
	FirstName   string       `json:"firstName" validate:"required,utf8text"`
	LastName    string       `json:"lastName" validate:"required,utf8text"`
	Nationality string       `json:"nationality" validate:"required,utf8text"`
	Email       string       `json:"email" validate:"required,email,utf8text"`
	Choice1     SchoolChoice `json:"choice1"`
	Choice2     SchoolChoice `json:"choice2"`
	Documents
}

// SubmissionInput は申請の保存要求を表す。
// CreatedAtがnilの場合は保存時刻が作成日時として使われる。
// CreatedAtTextは呼び出し元が送った作成日時の文字列で、応答にそのまま返す。
type SubmissionInput struct {
	Data          SubmissionData
	CreatedAt     *time.Time
	CreatedAtText string
}

// Submission はユーザーごとに高々1件保持される申請レコードを表す。
// 同じユーザーが再度保存すると、以前のレコードは丸ごと置き換えられる。
type Submission struct {
	DatabaseID string
	UserID     string
	SubmissionData
	CreatedAt time.Time
	UpdatedAt time.Time

	// CreatedAtText は呼び出し元指定の作成日時文字列。空の場合はCreatedAtを使う。
	CreatedAtText string
}

// Upload はアップロードされたファイルを表す。
// IDはバイト列の保存キーで、公開パスとは別のID空間に属する。
type Upload struct {
	ID           string
	OwnerEmail   string
	Label        string
	SubmissionID string
	Filename     string
	ContentType  string
	Size         int64
	Content      []byte
	CreatedAt    time.Time
}
