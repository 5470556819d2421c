package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open("sqlite", filepath.Join(t.TempDir(), "engine.db"), logger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePlatform issues sequential credentials and counts likes per target.
type fakePlatform struct {
	mu      sync.Mutex
	clock   func() time.Time
	ttl     time.Duration
	issued  int
	rejects map[string]bool
	authErr error
	likeErr error
	likes   map[string]int64
	calls   []likeCall
}

type likeCall struct {
	Credential string
	Server     string
	Target     string
	Count      int
}

func newFakePlatform(clock func() time.Time) *fakePlatform {
	return &fakePlatform{
		clock:   clock,
		ttl:     time.Hour,
		rejects: make(map[string]bool),
		likes:   make(map[string]int64),
	}
}

func (f *fakePlatform) Authenticate(ctx context.Context, uid, password, server string) (*IssuedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authErr != nil {
		return nil, f.authErr
	}
	if f.rejects[uid] {
		return nil, fmt.Errorf("%w: bad password for %s", ErrCredentialRejected, uid)
	}
	f.issued++
	return &IssuedToken{
		Credential: fmt.Sprintf("tok-%s-%d", uid, f.issued),
		ExpiresAt:  f.clock().Add(f.ttl),
	}, nil
}

func (f *fakePlatform) SendLikes(ctx context.Context, credential, server, targetUID string, count int) (*LikeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, likeCall{Credential: credential, Server: server, Target: targetUID, Count: count})
	if f.likeErr != nil {
		return nil, f.likeErr
	}
	before := f.likes[targetUID]
	f.likes[targetUID] = before + int64(count)
	return &LikeOutcome{
		Player: PlayerInfo{Name: "Player" + targetUID, UID: targetUID, Server: server, Level: 42},
		Before: before,
		After:  before + int64(count),
	}, nil
}

func (f *fakePlatform) issuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued
}

func (f *fakePlatform) likeCalls() []likeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]likeCall(nil), f.calls...)
}

type engine struct {
	db       *gorm.DB
	clock    *testClock
	platform *fakePlatform
	accounts *AccountService
	tokens   *TokenService
	quota    *QuotaService
	activity *SQLActivityLog
	dispatch *DispatchService
}

// newEngine wires every service over a fresh database. The clock starts at
// noon UTC on a fixed day.
func newEngine(t *testing.T) *engine {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	platform := newFakePlatform(clock.Now)

	e := &engine{db: db, clock: clock, platform: platform}
	e.accounts = NewAccountService(db)
	e.tokens = NewTokenService(db, e.accounts, platform, TokenOptions{
		UpstreamTimeout: time.Second,
		RefreshMargin:   5 * time.Minute,
		SweepInterval:   time.Hour,
		Concurrency:     3,
		Now:             clock.Now,
	})
	e.quota = NewQuotaService(db, 100, time.UTC, clock.Now)
	e.activity = NewSQLActivityLog(db, 100, time.UTC)
	e.dispatch = NewDispatchService(e.accounts, e.tokens, e.quota, platform, e.activity, DispatchOptions{
		Workers:         4,
		UpstreamTimeout: time.Second,
		Now:             clock.Now,
	})
	return e
}

func (e *engine) addAccount(t *testing.T, uid, server string) *models.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), models.CreateAccountRequest{UID: uid, Password: "pw-" + uid, Server: server})
	if err != nil {
		t.Fatalf("create account %s/%s: %v", server, uid, err)
	}
	return a
}

func countValidTokens(t *testing.T, db *gorm.DB, accountID uint, now time.Time) int {
	t.Helper()
	var tokens []models.Token
	if err := db.Where("account_id = ?", accountID).Find(&tokens).Error; err != nil {
		t.Fatalf("load tokens: %v", err)
	}
	n := 0
	for i := range tokens {
		if tokens[i].IsValid(now) {
			n++
		}
	}
	return n
}
