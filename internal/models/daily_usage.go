package models

import "time"

// DailyUsage likes received by one target uid on one calendar day.
// A new row is created for each day; old rows stay as history.
type DailyUsage struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	TargetUID string    `gorm:"size:32;not null;uniqueIndex:idx_daily_usage_target_date" json:"target_uid"`
	Date      string    `gorm:"column:usage_date;size:10;not null;uniqueIndex:idx_daily_usage_target_date;index" json:"date"`
	Count     int       `gorm:"column:like_count;not null;default:0" json:"count"`
	ResetAt   time.Time `gorm:"not null" json:"reset_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DailyUsage) TableName() string {
	return "daily_usage"
}
