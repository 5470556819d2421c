package models

import (
	"strings"
	"time"
)

// Servers known to the game platform, in display order.
var Servers = []string{"IND", "BR", "BD", "US", "SAC", "NA", "ME", "ID", "TH", "VN", "SG", "RU", "TW", "EU", "PK"}

// ServerNames is the human label shown by the panel.
var ServerNames = map[string]string{
	"IND": "India",
	"BR":  "Brazil",
	"BD":  "Bangladesh",
	"US":  "USA",
	"SAC": "South America",
	"NA":  "North America",
	"ME":  "Middle East",
	"ID":  "Indonesia",
	"TH":  "Thailand",
	"VN":  "Vietnam",
	"SG":  "Singapore",
	"RU":  "Russia",
	"TW":  "Taiwan",
	"EU":  "Europe",
	"PK":  "Pakistan",
}

// NormalizeServer upper-cases a server code; ok is false for unknown codes.
func NormalizeServer(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	_, ok := ServerNames[code]
	return code, ok
}

// Account game account used to act on behalf of like requests.
// uid and server never change once the row exists.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UID       string    `gorm:"size:32;not null;uniqueIndex:idx_accounts_uid_server" json:"uid"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Server    string    `gorm:"size:8;not null;uniqueIndex:idx_accounts_uid_server;index" json:"server"`
	Name      string    `gorm:"size:100" json:"name"`
	Slot      int       `gorm:"column:account_id;not null;default:1" json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// CreateAccountRequest admin add-account payload
type CreateAccountRequest struct {
	UID       string `json:"uid" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Server    string `json:"server" binding:"required"`
	Name      string `json:"name"`
	AccountID int    `json:"account_id"`
}

// UpdateAccountRequest only mutable fields; empty values are left unchanged.
type UpdateAccountRequest struct {
	Password  string `json:"password"`
	Name      string `json:"name"`
	AccountID int    `json:"account_id"`
}
