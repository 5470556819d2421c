package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultUpstreamTimeout    = 10 * time.Second
	defaultRefreshMargin      = 5 * time.Minute
	defaultSweepInterval      = time.Minute
	defaultRefreshConcurrency = 5
)

type TokenOptions struct {
	UpstreamTimeout time.Duration
	RefreshMargin   time.Duration
	SweepInterval   time.Duration
	Concurrency     int
	Now             func() time.Time
}

// TokenService keeps one fresh platform token per account. Issuance for an
// account is serialized by a per-account lock shared by foreground calls and
// the background sweep.
type TokenService struct {
	db       *gorm.DB
	accounts *AccountService
	platform PlatformClient
	locks    *keyedMutex

	timeout       time.Duration
	margin        time.Duration
	sweepInterval time.Duration
	concurrency   int
	now           func() time.Time

	wg sync.WaitGroup
}

func NewTokenService(db *gorm.DB, accounts *AccountService, platform PlatformClient, opts TokenOptions) *TokenService {
	s := &TokenService{
		db:            db,
		accounts:      accounts,
		platform:      platform,
		locks:         newKeyedMutex(),
		timeout:       opts.UpstreamTimeout,
		margin:        opts.RefreshMargin,
		sweepInterval: opts.SweepInterval,
		concurrency:   opts.Concurrency,
		now:           opts.Now,
	}
	if s.timeout <= 0 {
		s.timeout = defaultUpstreamTimeout
	}
	if s.margin <= 0 {
		s.margin = defaultRefreshMargin
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = defaultSweepInterval
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultRefreshConcurrency
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func accountLockKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Current returns the account's live token row, or nil when it has none.
// The returned token may already be expired.
func (s *TokenService) Current(ctx context.Context, accountID uint) (*models.Token, error) {
	var token models.Token
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND superseded_at IS NULL", accountID).
		Order("id desc").First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// EnsureToken returns a valid token for the account, issuing a new one if the
// current token is missing or expired.
func (s *TokenService) EnsureToken(ctx context.Context, accountID uint) (*models.Token, error) {
	unlock, err := s.lockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.Current(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.IsValid(s.now()) {
		return current, nil
	}
	return s.issueLocked(ctx, accountID)
}

// Refresh always issues a new token, superseding the current one.
func (s *TokenService) Refresh(ctx context.Context, accountID uint) (*models.Token, error) {
	unlock, err := s.lockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.issueLocked(ctx, accountID)
}

// lockAccount waits for the account's issuance lock until ctx ends.
func (s *TokenService) lockAccount(ctx context.Context, accountID uint) (func(), error) {
	unlock, err := s.locks.LockContext(ctx, accountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for account %d: %v", ErrUpstreamUnavailable, accountID, err)
	}
	return unlock, nil
}

// Revoke supersedes the current token without issuing a new one.
func (s *TokenService) Revoke(ctx context.Context, accountID uint) error {
	unlock := s.locks.Lock(accountLockKey(accountID))
	defer unlock()
	now := s.now()
	return s.db.WithContext(ctx).Model(&models.Token{}).
		Where("account_id = ? AND superseded_at IS NULL", accountID).
		Update("superseded_at", &now).Error
}

// Purge removes every token row of a deleted account.
func (s *TokenService) Purge(ctx context.Context, accountID uint) error {
	unlock := s.locks.Lock(accountLockKey(accountID))
	defer unlock()
	return s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.Token{}).Error
}

func (s *TokenService) issueLocked(ctx context.Context, accountID uint) (*models.Token, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	issued, err := s.platform.Authenticate(callCtx, account.UID, account.Password, account.Server)
	if err != nil {
		if !errors.Is(err, ErrCredentialRejected) && !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return nil, &AccountError{AccountID: accountID, Err: err}
	}

	now := s.now()
	if !issued.ExpiresAt.After(now) {
		return nil, &AccountError{
			AccountID: accountID,
			Err:       fmt.Errorf("%w: platform issued a token already expired at %s", ErrUpstreamUnavailable, issued.ExpiresAt.Format(time.RFC3339)),
		}
	}

	token := &models.Token{
		AccountID:  account.ID,
		Server:     account.Server,
		Credential: issued.Credential,
		IssuedAt:   now,
		ExpiresAt:  issued.ExpiresAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Token{}).
			Where("account_id = ? AND superseded_at IS NULL", account.ID).
			Update("superseded_at", &now).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store token for account %d: %w", account.ID, err)
	}
	return token, nil
}

type RefreshFailure struct {
	AccountID uint   `json:"account_id"`
	UID       string `json:"uid"`
	Server    string `json:"server"`
	Reason    string `json:"reason"`
	Kind      string `json:"kind"`
}

type RefreshReport struct {
	RunID      string           `json:"run_id"`
	Server     string           `json:"server,omitempty"`
	Total      int              `json:"total"`
	Refreshed  int              `json:"refreshed"`
	Failed     []RefreshFailure `json:"failed"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// RefreshAll refreshes every account in scope. One failing account never
// stops the others; failures are reported per account.
func (s *TokenService) RefreshAll(ctx context.Context, server string) (*RefreshReport, error) {
	accounts, err := s.accounts.List(ctx, server)
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{
		RunID:     uuid.NewString(),
		Server:    server,
		Total:     len(accounts),
		Failed:    make([]RefreshFailure, 0),
		StartedAt: s.now(),
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range accounts {
		account := accounts[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := s.Refresh(ctx, account.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, RefreshFailure{
					AccountID: account.ID,
					UID:       account.UID,
					Server:    account.Server,
					Reason:    err.Error(),
					Kind:      ErrorKind(err),
				})
				return
			}
			report.Refreshed++
		}()
	}
	wg.Wait()

	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].AccountID < report.Failed[j].AccountID })
	report.FinishedAt = s.now()
	log.Printf("[token] refresh run %s server=%q refreshed=%d failed=%d", report.RunID, server, report.Refreshed, len(report.Failed))
	return report, nil
}

type ServerTokenStatus struct {
	Accounts    int        `json:"accounts"`
	ValidTokens int        `json:"valid_tokens"`
	TotalTokens int        `json:"total_tokens"`
	NextExpiry  *time.Time `json:"next_expiry"`
}

// Status summarizes live tokens per server. Every server holding accounts is
// listed, as is the requested server when one is given.
func (s *TokenService) Status(ctx context.Context, server string) (map[string]*ServerTokenStatus, error) {
	accounts, err := s.accounts.List(ctx, server)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*ServerTokenStatus)
	if server != "" {
		code, _ := models.NormalizeServer(server)
		result[code] = &ServerTokenStatus{}
	}
	for _, a := range accounts {
		st, ok := result[a.Server]
		if !ok {
			st = &ServerTokenStatus{}
			result[a.Server] = st
		}
		st.Accounts++
	}

	tokens, err := s.liveTokens(ctx, server)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range tokens {
		t := tokens[i]
		st, ok := result[t.Server]
		if !ok {
			continue
		}
		st.TotalTokens++
		if t.IsValid(now) {
			st.ValidTokens++
			if st.NextExpiry == nil || t.ExpiresAt.Before(*st.NextExpiry) {
				expiry := t.ExpiresAt
				st.NextExpiry = &expiry
			}
		}
	}
	return result, nil
}

// liveTokens returns the non-superseded token of every existing account.
func (s *TokenService) liveTokens(ctx context.Context, server string) ([]models.Token, error) {
	query := s.db.WithContext(ctx).Model(&models.Token{}).
		Where("superseded_at IS NULL").
		Where("account_id IN (?)", s.db.Model(&models.Account{}).Select("id"))
	if server != "" {
		code, _ := models.NormalizeServer(server)
		query = query.Where("server = ?", code)
	}
	tokens := make([]models.Token, 0)
	if err := query.Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// Sweep refreshes accounts whose token is missing or expires within the
// refresh margin. It returns how many were refreshed; failures are logged.
func (s *TokenService) Sweep(ctx context.Context) (int, error) {
	accounts, err := s.accounts.List(ctx, "")
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, account := range accounts {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		ok, err := s.refreshIfDue(ctx, account.ID)
		if err != nil {
			log.Printf("[WARN] token sweep: account %d (%s/%s): %v", account.ID, account.Server, account.UID, err)
			continue
		}
		if ok {
			refreshed++
		}
	}
	return refreshed, nil
}

func (s *TokenService) refreshIfDue(ctx context.Context, accountID uint) (bool, error) {
	unlock := s.locks.Lock(accountLockKey(accountID))
	defer unlock()

	current, err := s.Current(ctx, accountID)
	if err != nil {
		return false, err
	}
	if current != nil && current.IsValid(s.now().Add(s.margin)) {
		return false, nil
	}
	if _, err := s.issueLocked(ctx, accountID); err != nil {
		return false, err
	}
	return true, nil
}

// Start runs the background sweep until ctx is cancelled.
func (s *TokenService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx)
	}()
}

func (s *TokenService) Wait() {
	s.wg.Wait()
}

func (s *TokenService) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		if n, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[WARN] token sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("[token] sweep refreshed %d tokens", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
