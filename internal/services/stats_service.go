package services

import (
	"context"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"gorm.io/gorm"
)

const (
	ServerStatusActive   = "active"
	ServerStatusInactive = "inactive"
)

type Overview struct {
	TotalServers  int `json:"total_servers"`
	TotalAccounts int `json:"total_accounts"`
	TotalTokens   int `json:"total_tokens"`
	ValidTokens   int `json:"valid_tokens"`
}

type ServerStats struct {
	Server      string     `json:"server"`
	Name        string     `json:"name"`
	Accounts    int        `json:"accounts"`
	Tokens      int        `json:"tokens"`
	ValidTokens int        `json:"valid_tokens"`
	Status      string     `json:"status"`
	NextExpiry  *time.Time `json:"next_expiry,omitempty"`
}

type ActivitySummary struct {
	TotalLikesSent int64           `json:"total_likes_sent"`
	Dispatches     int64           `json:"dispatches"`
	ByDate         []DailyActivity `json:"by_date"`
}

type Dashboard struct {
	Overview       Overview                `json:"overview"`
	Servers        map[string]*ServerStats `json:"servers"`
	RecentActivity ActivitySummary         `json:"recent_activity"`
	Days           int                     `json:"days"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

type StorageStatistics struct {
	Servers       map[string]*ServerStats `json:"servers"`
	TotalServers  int                     `json:"total_servers"`
	TotalAccounts int                     `json:"total_accounts"`
	TotalTokens   int                     `json:"total_tokens"`
}

type StorageStats struct {
	Connected  bool              `json:"connected"`
	Statistics StorageStatistics `json:"statistics"`
	Timestamp  time.Time         `json:"timestamp"`
}

// StatsService reads aggregate state for dashboards. It never writes and
// tolerates staleness between its reads.
type StatsService struct {
	db       *gorm.DB
	tokens   *TokenService
	activity ActivityLog
	loc      *time.Location
	now      func() time.Time
}

func NewStatsService(db *gorm.DB, tokens *TokenService, activity ActivityLog, loc *time.Location, now func() time.Time) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &StatsService{db: db, tokens: tokens, activity: activity, loc: loc, now: now}
}

// PerServer returns stats for every server that holds accounts.
func (s *StatsService) PerServer(ctx context.Context) (map[string]*ServerStats, error) {
	status, err := s.tokens.Status(ctx, "")
	if err != nil {
		return nil, err
	}
	result := make(map[string]*ServerStats, len(status))
	for code, st := range status {
		item := &ServerStats{
			Server:      code,
			Name:        models.ServerNames[code],
			Accounts:    st.Accounts,
			Tokens:      st.TotalTokens,
			ValidTokens: st.ValidTokens,
			Status:      ServerStatusInactive,
			NextExpiry:  st.NextExpiry,
		}
		if st.ValidTokens > 0 {
			item.Status = ServerStatusActive
		}
		result[code] = item
	}
	return result, nil
}

func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	servers, err := s.PerServer(ctx)
	if err != nil {
		return nil, err
	}
	o := overviewOf(servers)
	return &o, nil
}

func overviewOf(servers map[string]*ServerStats) Overview {
	o := Overview{TotalServers: len(servers)}
	for _, st := range servers {
		o.TotalAccounts += st.Accounts
		o.TotalTokens += st.Tokens
		o.ValidTokens += st.ValidTokens
	}
	return o
}

// RecentActivity returns at most limit dispatch results, newest first.
func (s *StatsService) RecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	if s.activity == nil {
		return []models.Activity{}, nil
	}
	return s.activity.Recent(ctx, limit)
}

// Dashboard combines the overview, per-server stats and the last days of
// activity, oldest day first.
func (s *StatsService) Dashboard(ctx context.Context, days int) (*Dashboard, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	servers, err := s.PerServer(ctx)
	if err != nil {
		return nil, err
	}

	dates := make([]string, days)
	today := s.now().In(s.loc)
	for i := 0; i < days; i++ {
		dates[i] = today.AddDate(0, 0, i-days+1).Format(usageDateLayout)
	}

	summary := ActivitySummary{ByDate: make([]DailyActivity, 0, days)}
	if s.activity != nil {
		byDate, err := s.activity.DailyTotals(ctx, dates)
		if err != nil {
			return nil, err
		}
		summary.ByDate = byDate
	} else {
		for _, d := range dates {
			summary.ByDate = append(summary.ByDate, DailyActivity{Date: d})
		}
	}
	for _, d := range summary.ByDate {
		summary.TotalLikesSent += d.LikesSent
		summary.Dispatches += d.Dispatches
	}

	return &Dashboard{
		Overview:       overviewOf(servers),
		Servers:        servers,
		RecentActivity: summary,
		Days:           days,
		GeneratedAt:    s.now(),
	}, nil
}

// StorageStats reports database reachability and row counts.
func (s *StatsService) StorageStats(ctx context.Context) *StorageStats {
	out := &StorageStats{
		Connected:  models.Ping(s.db),
		Statistics: StorageStatistics{Servers: map[string]*ServerStats{}},
		Timestamp:  s.now(),
	}
	if !out.Connected {
		return out
	}
	servers, err := s.PerServer(ctx)
	if err != nil {
		return out
	}
	o := overviewOf(servers)
	out.Statistics = StorageStatistics{
		Servers:       servers,
		TotalServers:  o.TotalServers,
		TotalAccounts: o.TotalAccounts,
		TotalTokens:   o.TotalTokens,
	}
	return out
}
