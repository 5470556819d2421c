package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"golang.org/x/time/rate"
)

const (
	MinLikesPerRequest = 1
	MaxLikesPerRequest = 100
	DefaultLikeCount   = 10

	defaultDispatchWorkers = 8
)

type DispatchRequest struct {
	TargetUID string
	Server    string
	Count     int
}

// DispatchResult is a successful like dispatch.
type DispatchResult struct {
	TargetUID   string     `json:"target_uid"`
	Server      string     `json:"server"`
	Player      PlayerInfo `json:"player"`
	Requested   int        `json:"requested"`
	LikesSent   int        `json:"likes_sent"`
	BeforeCount int64      `json:"before_count"`
	AfterCount  int64      `json:"after_count"`
	AccountID   uint       `json:"account_id"`
	Usage       Usage      `json:"usage"`
	Timestamp   time.Time  `json:"timestamp"`
}

type DispatchOptions struct {
	Workers         int
	UpstreamTimeout time.Duration
	// UpstreamRPS paces like calls per server; zero disables pacing.
	UpstreamRPS   float64
	UpstreamBurst int
	Now           func() time.Time
}

// DispatchService sends likes to a target through the server's account pool.
type DispatchService struct {
	accounts *AccountService
	tokens   *TokenService
	quota    *QuotaService
	platform PlatformClient
	activity ActivityLog

	slots   chan struct{}
	timeout time.Duration
	rps     float64
	burst   int
	now     func() time.Time

	mu       sync.Mutex
	cursors  map[string]uint64
	limiters map[string]*rate.Limiter
}

func NewDispatchService(accounts *AccountService, tokens *TokenService, quota *QuotaService, platform PlatformClient, activity ActivityLog, opts DispatchOptions) *DispatchService {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	s := &DispatchService{
		accounts: accounts,
		tokens:   tokens,
		quota:    quota,
		platform: platform,
		activity: activity,
		slots:    make(chan struct{}, workers),
		timeout:  opts.UpstreamTimeout,
		rps:      opts.UpstreamRPS,
		burst:    opts.UpstreamBurst,
		now:      opts.Now,
		cursors:  make(map[string]uint64),
		limiters: make(map[string]*rate.Limiter),
	}
	if s.timeout <= 0 {
		s.timeout = defaultUpstreamTimeout
	}
	if s.burst <= 0 {
		s.burst = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *DispatchService) validate(req DispatchRequest) (DispatchRequest, error) {
	req.TargetUID = strings.TrimSpace(req.TargetUID)
	if !isNumericUID(req.TargetUID) {
		return req, validationErrorf("uid must be numeric")
	}
	if req.Count < MinLikesPerRequest || req.Count > MaxLikesPerRequest {
		return req, validationErrorf("like_count must be between %d and %d", MinLikesPerRequest, MaxLikesPerRequest)
	}
	code, ok := models.NormalizeServer(req.Server)
	if !ok {
		return req, fmt.Errorf("%w: %q", ErrInvalidServer, req.Server)
	}
	req.Server = code
	return req, nil
}

// Dispatch validates the request, reserves quota, and sends the granted likes
// through one account of the server. Upstream failures after reservation keep
// the quota consumed and are returned as *DispatchError.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	pool, err := s.accounts.List(ctx, req.Server)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServerHasNoAccounts, req.Server)
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	}

	if lim := s.limiter(req.Server); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: pacing %s: %v", ErrUpstreamUnavailable, req.Server, err)
		}
	}

	res, err := s.quota.Reserve(ctx, req.TargetUID, req.Count)
	if err != nil {
		return nil, err
	}
	if res.Granted == 0 {
		return nil, &LimitReachedError{Usage: res.Usage}
	}

	account := s.next(req.Server, pool)
	fail := func(err error) (*DispatchResult, error) {
		log.Printf("[WARN] dispatch %s/%s via account %d failed: %v", req.Server, req.TargetUID, account.ID, err)
		return nil, &DispatchError{Err: err, Granted: res.Granted, Usage: res.Usage}
	}

	token, err := s.tokens.EnsureToken(ctx, account.ID)
	if err != nil {
		if !errors.Is(err, ErrCredentialRejected) && !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return fail(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	outcome, err := s.platform.SendLikes(callCtx, token.Credential, req.Server, req.TargetUID, res.Granted)
	if err != nil {
		if !errors.Is(err, ErrCredentialRejected) && !errors.Is(err, ErrTargetNotFound) && !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return fail(&AccountError{AccountID: account.ID, Err: err})
	}

	player := outcome.Player
	if player.UID == "" {
		player.UID = req.TargetUID
	}
	if player.Server == "" {
		player.Server = req.Server
	}
	result := &DispatchResult{
		TargetUID:   req.TargetUID,
		Server:      req.Server,
		Player:      player,
		Requested:   req.Count,
		LikesSent:   res.Granted,
		BeforeCount: outcome.Before,
		AfterCount:  outcome.After,
		AccountID:   account.ID,
		Usage:       res.Usage,
		Timestamp:   s.now(),
	}

	if s.activity != nil {
		entry := models.Activity{
			TargetUID:   result.TargetUID,
			Server:      result.Server,
			PlayerName:  player.Name,
			LikesSent:   result.LikesSent,
			BeforeCount: result.BeforeCount,
			AfterCount:  result.AfterCount,
			CreatedAt:   result.Timestamp,
		}
		if err := s.activity.Append(ctx, entry); err != nil {
			log.Printf("[WARN] activity log append failed: %v", err)
		}
	}
	return result, nil
}

// next picks accounts round-robin in slot order.
func (s *DispatchService) next(server string, pool []models.Account) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.cursors[server] % uint64(len(pool))
	s.cursors[server]++
	return pool[i]
}

func (s *DispatchService) peekNext(server string, pool []models.Account) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.cursors[server]%uint64(len(pool))]
}

func (s *DispatchService) limiter(server string) *rate.Limiter {
	if s.rps <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[server]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.rps), s.burst)
		s.limiters[server] = lim
	}
	return lim
}

type InspectAccount struct {
	ID          uint       `json:"id"`
	UID         string     `json:"uid"`
	Slot        int        `json:"account_id"`
	Name        string     `json:"name"`
	TokenStatus string     `json:"token_status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Inspection describes what a dispatch would do right now.
type Inspection struct {
	TargetUID   string          `json:"uid"`
	Server      string          `json:"server"`
	Accounts    int             `json:"accounts"`
	NextAccount *InspectAccount `json:"next_account"`
	Usage       Usage           `json:"usage"`
	WouldGrant  int             `json:"would_grant_default"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Inspect has no side effects: it neither advances the round-robin cursor
// nor touches tokens or quota.
func (s *DispatchService) Inspect(ctx context.Context, targetUID, server string) (*Inspection, error) {
	targetUID = strings.TrimSpace(targetUID)
	if !isNumericUID(targetUID) {
		return nil, validationErrorf("uid must be numeric")
	}
	code, ok := models.NormalizeServer(server)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServer, server)
	}

	usage, err := s.quota.Peek(ctx, targetUID)
	if err != nil {
		return nil, err
	}
	pool, err := s.accounts.List(ctx, code)
	if err != nil {
		return nil, err
	}

	in := &Inspection{
		TargetUID: targetUID,
		Server:    code,
		Accounts:  len(pool),
		Usage:     *usage,
		Timestamp: s.now(),
	}
	in.WouldGrant = usage.RemainingToday
	if in.WouldGrant > DefaultLikeCount {
		in.WouldGrant = DefaultLikeCount
	}
	if len(pool) == 0 {
		return in, nil
	}

	account := s.peekNext(code, pool)
	next := &InspectAccount{
		ID:          account.ID,
		UID:         account.UID,
		Slot:        account.Slot,
		Name:        account.Name,
		TokenStatus: "missing",
	}
	token, err := s.tokens.Current(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if token != nil {
		next.TokenStatus = token.Status(s.now())
		expires := token.ExpiresAt
		next.ExpiresAt = &expires
	}
	in.NextAccount = next
	return in, nil
}
