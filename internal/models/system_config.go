package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemConfig key-value engine setting editable from the admin panel.
type SystemConfig struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Label     string    `json:"label"`
	Category  string    `gorm:"index" json:"category"`
	IsSecret  bool      `gorm:"default:false" json:"is_secret"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemConfig) TableName() string {
	return "system_configs"
}

// GetConfigValue returns the stored value for key, falling back to fallback.
func GetConfigValue(db *gorm.DB, key, fallback string) string {
	var config SystemConfig
	if err := db.Where("key = ?", key).First(&config).Error; err == nil && config.Value != "" {
		return config.Value
	}
	return fallback
}

// UpsertConfig creates or updates a setting row.
func UpsertConfig(db *gorm.DB, key, value, label, category string, isSecret bool) error {
	var config SystemConfig
	result := db.Where("key = ?", key).First(&config)

	if result.Error != nil {
		config = SystemConfig{
			Key:      key,
			Value:    value,
			Label:    label,
			Category: category,
			IsSecret: isSecret,
		}
		return db.Create(&config).Error
	}

	updates := map[string]interface{}{
		"value":     value,
		"label":     label,
		"category":  category,
		"is_secret": isSecret,
	}
	return db.Model(&config).Updates(updates).Error
}
