package models

import "time"

const (
	TokenStatusValid   = "valid"
	TokenStatusExpired = "expired"
)

// Token bearer credential issued by the game platform for one account.
// Rows are never extended: a refresh supersedes the current row and inserts a new one.
type Token struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AccountID    uint       `gorm:"not null;index" json:"account_id"`
	Server       string     `gorm:"size:8;not null;index" json:"server"`
	Credential   string     `gorm:"type:text;not null" json:"-"`
	IssuedAt     time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt    time.Time  `gorm:"not null;index" json:"expires_at"`
	SupersededAt *time.Time `gorm:"index" json:"superseded_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (Token) TableName() string {
	return "tokens"
}

// Status derives validity from the clock; nothing flips it at expiry.
func (t *Token) Status(now time.Time) string {
	if t.SupersededAt == nil && now.Before(t.ExpiresAt) {
		return TokenStatusValid
	}
	return TokenStatusExpired
}

// IsValid reports Status(now) == valid.
func (t *Token) IsValid(now time.Time) bool {
	return t.Status(now) == TokenStatusValid
}
