// Package model はドメインモデルを定義する。
package model

import "time"

// User はポータルに登録されたアカウント（Identity）を表す。
// Emailは一意な自然キーで、大文字小文字を区別して比較する。
// IDは一度割り当てたら変更しない。
type User struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string // argon2idのPHC形式文字列
	IsEmailVerified bool
	CreatedAt       time.Time
}

// TokenTypeBearer はセッションのトークン種別。
const TokenTypeBearer = "bearer"

// Session はBearerトークンで表される認証セッションを表す。
// AccessTokenが存在し、かつ現在時刻がExpiresAtより前の場合のみ有効。
// RefreshTokenは発行されるが、交換フローは存在しない。
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	UserID       string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// IsExpired は指定時刻においてセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
