package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultActivityRetention = 1000

// DailyActivity is the per-day rollup of successful dispatches.
type DailyActivity struct {
	Date       string `json:"date"`
	LikesSent  int64  `json:"likes_sent"`
	Dispatches int64  `json:"dispatches"`
}

// ActivityLog is the append-only record of successful dispatches. Entries
// past the retention bound are dropped oldest first.
type ActivityLog interface {
	Append(ctx context.Context, entry models.Activity) error
	Recent(ctx context.Context, limit int) ([]models.Activity, error)
	// DailyTotals returns one rollup per date, in the order given.
	DailyTotals(ctx context.Context, dates []string) ([]DailyActivity, error)
}

// SQLActivityLog keeps the log in the activities table.
type SQLActivityLog struct {
	db        *gorm.DB
	retention int
	loc       *time.Location
}

func NewSQLActivityLog(db *gorm.DB, retention int, loc *time.Location) *SQLActivityLog {
	if retention <= 0 {
		retention = defaultActivityRetention
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SQLActivityLog{db: db, retention: retention, loc: loc}
}

func (l *SQLActivityLog) Append(ctx context.Context, entry models.Activity) error {
	entry.ID = 0
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	// sqlite compares timestamps as text, so keep one offset
	entry.CreatedAt = entry.CreatedAt.UTC()
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return l.trim(ctx)
}

func (l *SQLActivityLog) trim(ctx context.Context) error {
	var boundary models.Activity
	err := l.db.WithContext(ctx).Select("id").Order("id desc").Offset(l.retention).Limit(1).Take(&boundary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("trim activity: %w", err)
	}
	return l.db.WithContext(ctx).Where("id <= ?", boundary.ID).Delete(&models.Activity{}).Error
}

func (l *SQLActivityLog) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	items := make([]models.Activity, 0, limit)
	err := l.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&items).Error
	return items, err
}

func (l *SQLActivityLog) DailyTotals(ctx context.Context, dates []string) ([]DailyActivity, error) {
	result := make([]DailyActivity, len(dates))
	if len(dates) == 0 {
		return result, nil
	}
	index := make(map[string]int, len(dates))
	earliest := dates[0]
	for i, d := range dates {
		result[i].Date = d
		index[d] = i
		if d < earliest {
			earliest = d
		}
	}
	from, err := time.ParseInLocation(usageDateLayout, earliest, l.loc)
	if err != nil {
		return nil, err
	}

	var rows []models.Activity
	if err := l.db.WithContext(ctx).Select("likes_sent, created_at").
		Where("created_at >= ?", from.UTC()).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if i, ok := index[row.CreatedAt.In(l.loc).Format(usageDateLayout)]; ok {
			result[i].LikesSent += int64(row.LikesSent)
			result[i].Dispatches++
		}
	}
	return result, nil
}

// RedisActivityLog keeps the newest entries in a capped Redis list and
// per-day counters in hashes.
type RedisActivityLog struct {
	rdb       *redis.Client
	prefix    string
	retention int
	dailyTTL  time.Duration
	loc       *time.Location
}

type RedisActivityOption func(*RedisActivityLog)

func WithActivityPrefix(prefix string) RedisActivityOption {
	return func(l *RedisActivityLog) { l.prefix = strings.Trim(prefix, ":") }
}

func WithActivityDailyTTL(d time.Duration) RedisActivityOption {
	return func(l *RedisActivityLog) { l.dailyTTL = d }
}

func NewRedisActivityLog(rdb *redis.Client, retention int, loc *time.Location, opts ...RedisActivityOption) *RedisActivityLog {
	if retention <= 0 {
		retention = defaultActivityRetention
	}
	if loc == nil {
		loc = time.UTC
	}
	l := &RedisActivityLog{
		rdb:       rdb,
		prefix:    "fflike:activity",
		retention: retention,
		dailyTTL:  40 * 24 * time.Hour,
		loc:       loc,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisActivityLog) listKey() string {
	return l.prefix + ":recent"
}

func (l *RedisActivityLog) dailyKey(date string) string {
	return l.prefix + ":daily:" + date
}

func (l *RedisActivityLog) Append(ctx context.Context, entry models.Activity) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(redisActivity{
		TargetUID:   entry.TargetUID,
		Server:      entry.Server,
		PlayerName:  entry.PlayerName,
		LikesSent:   entry.LikesSent,
		BeforeCount: entry.BeforeCount,
		AfterCount:  entry.AfterCount,
		CreatedAt:   entry.CreatedAt,
	})
	if err != nil {
		return err
	}

	dayKey := l.dailyKey(entry.CreatedAt.In(l.loc).Format(usageDateLayout))

	pipe := l.rdb.TxPipeline()
	pipe.LPush(ctx, l.listKey(), payload)
	pipe.LTrim(ctx, l.listKey(), 0, int64(l.retention-1))
	pipe.HIncrBy(ctx, dayKey, "likes_sent", int64(entry.LikesSent))
	pipe.HIncrBy(ctx, dayKey, "dispatches", 1)
	if l.dailyTTL > 0 {
		pipe.Expire(ctx, dayKey, l.dailyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// redisActivity is the stored JSON form; models.Activity hides its id and
// renames fields for the API.
type redisActivity struct {
	TargetUID   string    `json:"target_uid"`
	Server      string    `json:"server"`
	PlayerName  string    `json:"player_name"`
	LikesSent   int       `json:"likes_sent"`
	BeforeCount int64     `json:"before_count"`
	AfterCount  int64     `json:"after_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l *RedisActivityLog) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := l.rdb.LRange(ctx, l.listKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	items := make([]models.Activity, 0, len(raw))
	for _, r := range raw {
		var a redisActivity
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			continue
		}
		items = append(items, models.Activity{
			TargetUID:   a.TargetUID,
			Server:      a.Server,
			PlayerName:  a.PlayerName,
			LikesSent:   a.LikesSent,
			BeforeCount: a.BeforeCount,
			AfterCount:  a.AfterCount,
			CreatedAt:   a.CreatedAt,
		})
	}
	return items, nil
}

func (l *RedisActivityLog) DailyTotals(ctx context.Context, dates []string) ([]DailyActivity, error) {
	result := make([]DailyActivity, len(dates))
	if len(dates) == 0 {
		return result, nil
	}
	pipe := l.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(dates))
	for i, d := range dates {
		cmds[i] = pipe.HGetAll(ctx, l.dailyKey(d))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read daily activity: %w", err)
	}
	for i, d := range dates {
		result[i].Date = d
		fields := cmds[i].Val()
		result[i].LikesSent = parseInt64(fields["likes_sent"])
		result[i].Dispatches = parseInt64(fields["dispatches"])
	}
	return result, nil
}

func parseInt64(raw string) int64 {
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}
