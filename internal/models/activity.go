package models

import "time"

// Activity one successful dispatch, kept for the recent-activity view.
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	TargetUID   string    `gorm:"size:32;not null;index" json:"uid"`
	Server      string    `gorm:"size:8;not null" json:"server"`
	PlayerName  string    `gorm:"size:100" json:"player_name"`
	LikesSent   int       `gorm:"not null" json:"likes_sent"`
	BeforeCount int64     `json:"before"`
	AfterCount  int64     `json:"after"`
	CreatedAt   time.Time `gorm:"index" json:"timestamp"`
}

func (Activity) TableName() string {
	return "activities"
}

