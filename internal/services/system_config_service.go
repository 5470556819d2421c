package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"gorm.io/gorm"
)

const settingsCategory = "engine"

// ErrUnknownSetting is returned for keys outside the engine settings table.
var ErrUnknownSetting = errors.New("unknown setting")

type settingDef struct {
	label string
	// live settings are applied without a restart
	live  bool
	check func(value string) error
}

func positiveInt(value string) error {
	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		return validationErrorf("expected a positive integer, got %q", value)
	}
	return nil
}

func positiveDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return validationErrorf("expected a positive duration such as 5m, got %q", value)
	}
	return nil
}

var engineSettings = map[string]settingDef{
	"daily_like_cap":       {label: "Daily like cap per target", live: true, check: positiveInt},
	"activity_retention":   {label: "Activity log retention (entries)", check: positiveInt},
	"token_refresh_margin": {label: "Token refresh margin", check: positiveDuration},
	"token_sweep_interval": {label: "Token sweep interval", check: positiveDuration},
}

// Setting is one engine tunable as shown in the admin panel.
type Setting struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Stored    bool   `json:"stored"`
	Effective string `json:"effective"`
	Live      bool   `json:"live"`
}

// SettingsService stores engine tunables in system_configs. Values read at
// startup come from the environment and are overlaid by stored rows.
type SettingsService struct {
	db        *gorm.DB
	effective func(key string) string
	defaults  func(key string) string

	mu        sync.RWMutex
	listeners []func(key, value string)
}

// NewSettingsService takes effective, which reports the running value of a
// key, and defaults, which reports the value configured by the environment.
func NewSettingsService(db *gorm.DB, effective, defaults func(key string) string) *SettingsService {
	if effective == nil {
		effective = func(string) string { return "" }
	}
	if defaults == nil {
		defaults = func(string) string { return "" }
	}
	return &SettingsService{db: db, effective: effective, defaults: defaults}
}

// OnChange registers fn to run after a setting is stored.
func (s *SettingsService) OnChange(fn func(key, value string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Lookup returns the stored value of key, or "" when unset.
func (s *SettingsService) Lookup(key string) string {
	return models.GetConfigValue(s.db, key, "")
}

func (s *SettingsService) List(ctx context.Context) ([]Setting, error) {
	var rows []models.SystemConfig
	if err := s.db.WithContext(ctx).Where("category = ?", settingsCategory).Find(&rows).Error; err != nil {
		return nil, err
	}
	stored := make(map[string]string, len(rows))
	for _, r := range rows {
		stored[r.Key] = r.Value
	}

	keys := make([]string, 0, len(engineSettings))
	for k := range engineSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		def := engineSettings[k]
		v, ok := stored[k]
		out = append(out, Setting{
			Key:       k,
			Label:     def.label,
			Value:     v,
			Stored:    ok,
			Effective: s.effective(k),
			Live:      def.live,
		})
	}
	return out, nil
}

// Update validates and stores a setting, then notifies listeners.
func (s *SettingsService) Update(ctx context.Context, key, value string) (*Setting, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	def, ok := engineSettings[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := def.check(value); err != nil {
		return nil, err
	}
	if err := models.UpsertConfig(s.db.WithContext(ctx), key, value, def.label, settingsCategory, false); err != nil {
		return nil, err
	}

	s.notify(key, value)
	log.Printf("[settings] %s set to %s", key, value)

	return &Setting{
		Key:       key,
		Label:     def.label,
		Value:     value,
		Stored:    true,
		Effective: s.effective(key),
		Live:      def.live,
	}, nil
}

func (s *SettingsService) notify(key, value string) {
	s.mu.RLock()
	listeners := append([]func(string, string){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(key, value)
	}
}

// Delete removes a stored override. Live settings fall back to the
// environment value at once, the rest after restart.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	def, ok := engineSettings[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.SystemConfig{}).Error; err != nil {
		return err
	}
	if def.live {
		if value := s.defaults(key); value != "" {
			s.notify(key, value)
			log.Printf("[settings] %s reset to %s", key, value)
		}
	}
	return nil
}
