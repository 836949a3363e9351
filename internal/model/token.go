package model

import "time"

// KeySource records which path produced a token's keypair.
type KeySource string

const (
	KeySourceTrustedTool KeySource = "wg"
	KeySourceFallback    KeySource = "fallback"
)

// TokenOrigin records why a token was created.
type TokenOrigin string

const (
	TokenOriginRequest  TokenOrigin = "request"
	TokenOriginReferral TokenOrigin = "referral"
	TokenOriginAdmin    TokenOrigin = "admin"
)

// Token is a single-use, time-boxed VPN credential bound to a keypair.
// Rows are never deleted.
type Token struct {
	Token     string      `gorm:"column:token;type:varchar(128);primaryKey" json:"token"`
	AccountID int64       `gorm:"column:user_id;not null;index:idx_tokens_user_created,priority:1" json:"user_id"`
	CreatedAt time.Time   `gorm:"column:created_at;not null;index:idx_tokens_user_created,priority:2" json:"created_at"`
	ExpiresAt time.Time   `gorm:"column:expires_at;not null" json:"expires_at"`
	Used      bool        `gorm:"column:used;not null;default:false" json:"used"`
	WGPrivate string      `gorm:"column:wg_private;not null;default:''" json:"-"`
	WGPublic  string      `gorm:"column:wg_public;not null;default:''" json:"wg_public"`
	KeySource KeySource   `gorm:"column:key_source;type:varchar(16);not null;default:'fallback'" json:"key_source"`
	Origin    TokenOrigin `gorm:"column:origin;type:varchar(16);not null;default:'request'" json:"origin"`
}

func (Token) TableName() string { return "tokens" }

// Redeemable reports whether t may still be consumed at now.
func (t *Token) Redeemable(now time.Time) bool {
	return !t.Used && !now.After(t.ExpiresAt)
}
