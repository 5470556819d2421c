package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultDailyLikeCap = 100
	resetTimeLayout     = "2006-01-02 15:04:05 MST"
	usageDateLayout     = "2006-01-02"
)

// Usage is a target's quota position for the current day.
type Usage struct {
	TargetUID      string    `json:"uid"`
	Date           string    `json:"date"`
	Cap            int       `json:"cap"`
	UsedToday      int       `json:"used_today"`
	RemainingToday int       `json:"remaining_today"`
	CanSendMore    bool      `json:"can_send_more"`
	ResetTime      time.Time `json:"reset_time"`
}

func (u Usage) ResetTimeString() string {
	return u.ResetTime.Format(resetTimeLayout)
}

// Reservation is the outcome of Reserve. Granted may be less than requested,
// and is zero once the cap is reached.
type Reservation struct {
	Requested int   `json:"requested"`
	Granted   int   `json:"granted"`
	Usage     Usage `json:"usage"`
}

// QuotaService tracks per-target daily like counts. Reservation and increment
// happen in one step; nothing is refunded afterwards.
type QuotaService struct {
	db    *gorm.DB
	cap   atomic.Int64
	loc   *time.Location
	now   func() time.Time
	locks *keyedMutex
}

func NewQuotaService(db *gorm.DB, dailyCap int, loc *time.Location, now func() time.Time) *QuotaService {
	if dailyCap <= 0 {
		dailyCap = DefaultDailyLikeCap
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	s := &QuotaService{db: db, loc: loc, now: now, locks: newKeyedMutex()}
	s.cap.Store(int64(dailyCap))
	return s
}

func (s *QuotaService) Cap() int {
	return int(s.cap.Load())
}

// SetCap changes the daily cap for reservations made from now on. Rows
// already past a lowered cap simply grant nothing more today.
func (s *QuotaService) SetCap(dailyCap int) {
	if dailyCap > 0 {
		s.cap.Store(int64(dailyCap))
	}
}

// day returns the local calendar date and the instant the next one starts.
func (s *QuotaService) day() (string, time.Time) {
	local := s.now().In(s.loc)
	y, m, d := local.Date()
	return local.Format(usageDateLayout), time.Date(y, m, d+1, 0, 0, 0, 0, s.loc)
}

func (s *QuotaService) usage(targetUID, date string, count, dailyCap int, resetAt time.Time) Usage {
	remaining := dailyCap - count
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		TargetUID:      targetUID,
		Date:           date,
		Cap:            dailyCap,
		UsedToday:      count,
		RemainingToday: remaining,
		CanSendMore:    remaining > 0,
		ResetTime:      resetAt,
	}
}

// Reserve grants min(requested, cap-used) likes for today and records them.
// Concurrent calls for one target are serialized, so grants never sum past the cap.
func (s *QuotaService) Reserve(ctx context.Context, targetUID string, requested int) (*Reservation, error) {
	targetUID = strings.TrimSpace(targetUID)
	if !isNumericUID(targetUID) {
		return nil, validationErrorf("uid must be numeric")
	}
	if requested < 1 {
		return nil, validationErrorf("requested count must be at least 1")
	}

	date, resetAt := s.day()
	unlock := s.locks.Lock(targetUID + "|" + date)
	defer unlock()

	res, err := s.reserveTx(ctx, targetUID, date, resetAt, requested)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another process created today's row first; it exists now.
		res, err = s.reserveTx(ctx, targetUID, date, resetAt, requested)
	}
	return res, err
}

func (s *QuotaService) reserveTx(ctx context.Context, targetUID, date string, resetAt time.Time, requested int) (*Reservation, error) {
	var res *Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row models.DailyUsage
		err := query.Where("target_uid = ? AND usage_date = ?", targetUID, date).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.DailyUsage{TargetUID: targetUID, Date: date, ResetAt: resetAt}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		dailyCap := s.Cap()
		granted := dailyCap - row.Count
		if granted < 0 {
			granted = 0
		}
		if requested < granted {
			granted = requested
		}
		if granted > 0 {
			if err := tx.Model(&models.DailyUsage{}).Where("id = ?", row.ID).
				Update("like_count", gorm.Expr("like_count + ?", granted)).Error; err != nil {
				return err
			}
			row.Count += granted
		}

		res = &Reservation{
			Requested: requested,
			Granted:   granted,
			Usage:     s.usage(targetUID, date, row.Count, dailyCap, resetAt),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Peek reads today's usage without changing it.
func (s *QuotaService) Peek(ctx context.Context, targetUID string) (*Usage, error) {
	targetUID = strings.TrimSpace(targetUID)
	if !isNumericUID(targetUID) {
		return nil, validationErrorf("uid must be numeric")
	}
	date, resetAt := s.day()

	var row models.DailyUsage
	err := s.db.WithContext(ctx).Where("target_uid = ? AND usage_date = ?", targetUID, date).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u := s.usage(targetUID, date, row.Count, s.Cap(), resetAt)
	return &u, nil
}

// History returns the target's usage rows for the last days days, newest first.
func (s *QuotaService) History(ctx context.Context, targetUID string, days int) ([]models.DailyUsage, error) {
	if days <= 0 {
		days = 7
	}
	local := s.now().In(s.loc)
	from := local.AddDate(0, 0, -(days - 1)).Format(usageDateLayout)

	rows := make([]models.DailyUsage, 0)
	err := s.db.WithContext(ctx).
		Where("target_uid = ? AND usage_date >= ?", strings.TrimSpace(targetUID), from).
		Order("usage_date desc").Find(&rows).Error
	return rows, err
}
