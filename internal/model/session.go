package model

import "time"

// Session は認証済みブラウザセッションを表す。
// ログイン成功時に作成され、ログアウト時またはトークン拒否の検出時に破棄される。
// Tokenはバックエンドが発行した不透明なアクセストークン。
type Session struct {
	ID        string
	Token     string
	ExpiresAt time.Time // ゼロ値は有効期限なし
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
