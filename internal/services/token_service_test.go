package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
)

func TestEnsureTokenReusesValidToken(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAccount(t, "1001", "IND")

	first, err := e.tokens.EnsureToken(ctx, a.ID)
	if err != nil {
		t.Fatalf("EnsureToken error: %v", err)
	}
	second, err := e.tokens.EnsureToken(ctx, a.ID)
	if err != nil {
		t.Fatalf("EnsureToken error: %v", err)
	}
	if first.ID != second.ID || e.platform.issuedCount() != 1 {
		t.Fatalf("expected reuse, got ids %d/%d issued=%d", first.ID, second.ID, e.platform.issuedCount())
	}

	e.clock.Advance(2 * time.Hour)
	third, err := e.tokens.EnsureToken(ctx, a.ID)
	if err != nil {
		t.Fatalf("EnsureToken after expiry: %v", err)
	}
	if third.ID == first.ID || e.platform.issuedCount() != 2 {
		t.Fatalf("expected a new token after expiry")
	}

	var old models.Token
	if err := e.db.First(&old, first.ID).Error; err != nil {
		t.Fatalf("load old token: %v", err)
	}
	if old.SupersededAt == nil {
		t.Fatalf("old token should be superseded")
	}
}

func TestAtMostOneValidTokenUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAccount(t, "1001", "IND")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var err error
			if n%2 == 0 {
				_, err = e.tokens.EnsureToken(ctx, a.ID)
			} else {
				_, err = e.tokens.Refresh(ctx, a.ID)
			}
			if err != nil {
				t.Errorf("token call %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if n := countValidTokens(t, e.db, a.ID, e.clock.Now()); n != 1 {
		t.Fatalf("valid tokens got=%d want=1", n)
	}
}

func TestRefreshAllReportsPerAccountFailures(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	good1 := e.addAccount(t, "1", "IND")
	bad := e.addAccount(t, "2", "IND")
	good2 := e.addAccount(t, "3", "BR")
	e.platform.rejects["2"] = true

	report, err := e.tokens.RefreshAll(ctx, "")
	if err != nil {
		t.Fatalf("RefreshAll error: %v", err)
	}
	if report.Total != 3 || report.Refreshed != 2 || len(report.Failed) != 1 {
		t.Fatalf("report got %+v", report)
	}
	f := report.Failed[0]
	if f.AccountID != bad.ID || f.Kind != "credential_rejected" || f.UID != "2" {
		t.Fatalf("failure got %+v", f)
	}
	if report.RunID == "" {
		t.Fatalf("missing run id")
	}
	for _, id := range []uint{good1.ID, good2.ID} {
		if n := countValidTokens(t, e.db, id, e.clock.Now()); n != 1 {
			t.Fatalf("account %d valid tokens=%d", id, n)
		}
	}

	scoped, err := e.tokens.RefreshAll(ctx, "BR")
	if err != nil {
		t.Fatalf("RefreshAll BR: %v", err)
	}
	if scoped.Total != 1 || scoped.Refreshed != 1 {
		t.Fatalf("scoped report %+v", scoped)
	}
}

func TestIssueRejectsAlreadyExpiredToken(t *testing.T) {
	e := newEngine(t)
	a := e.addAccount(t, "1", "IND")
	e.platform.ttl = -time.Minute

	_, err := e.tokens.Refresh(context.Background(), a.ID)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	var accErr *AccountError
	if !errors.As(err, &accErr) || accErr.AccountID != a.ID {
		t.Fatalf("expected AccountError for %d, got %v", a.ID, err)
	}
	if n := countValidTokens(t, e.db, a.ID, e.clock.Now()); n != 0 {
		t.Fatalf("no token should be stored, got %d valid", n)
	}
}

func TestSweepRefreshesDueTokens(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	fresh := e.addAccount(t, "1", "IND")
	e.addAccount(t, "2", "IND")

	if _, err := e.tokens.Refresh(ctx, fresh.ID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	n, err := e.tokens.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if n != 1 {
		t.Fatalf("first sweep refreshed %d, want 1 (account without token)", n)
	}

	// both tokens now sit inside the 5 minute margin
	e.clock.Advance(57 * time.Minute)
	n, err = e.tokens.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if n != 2 {
		t.Fatalf("second sweep refreshed %d, want 2", n)
	}

	n, err = e.tokens.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("third sweep refreshed %d err=%v, want 0", n, err)
	}
}

func TestRevokeAndPurge(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAccount(t, "1", "IND")
	if _, err := e.tokens.EnsureToken(ctx, a.ID); err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}

	if err := e.tokens.Revoke(ctx, a.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	cur, err := e.tokens.Current(ctx, a.ID)
	if err != nil || cur != nil {
		t.Fatalf("Current after revoke got=%v err=%v", cur, err)
	}

	if err := e.tokens.Purge(ctx, a.ID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	var count int64
	e.db.Model(&models.Token{}).Where("account_id = ?", a.ID).Count(&count)
	if count != 0 {
		t.Fatalf("Purge left %d rows", count)
	}
}

func TestTokenStatusPerServer(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAccount(t, "1", "IND")
	e.addAccount(t, "2", "IND")
	e.addAccount(t, "3", "BR")
	if _, err := e.tokens.EnsureToken(ctx, a.ID); err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}

	status, err := e.tokens.Status(ctx, "")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	ind := status["IND"]
	if ind == nil || ind.Accounts != 2 || ind.ValidTokens != 1 || ind.TotalTokens != 1 || ind.NextExpiry == nil {
		t.Fatalf("IND status %+v", ind)
	}
	br := status["BR"]
	if br == nil || br.Accounts != 1 || br.ValidTokens != 0 {
		t.Fatalf("BR status %+v", br)
	}

	e.clock.Advance(2 * time.Hour)
	status, err = e.tokens.Status(ctx, "ind")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if status["IND"].ValidTokens != 0 || status["IND"].TotalTokens != 1 {
		t.Fatalf("expired token should count as total only: %+v", status["IND"])
	}
	if _, ok := status["BR"]; ok {
		t.Fatalf("scoped status should only list IND")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	e := newEngine(t)
	e.addAccount(t, "1", "IND")

	ctx, cancel := context.WithCancel(context.Background())
	e.tokens.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for e.platform.issuedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	e.tokens.Wait()

	if e.platform.issuedCount() != 1 {
		t.Fatalf("initial sweep issued %d tokens, want 1", e.platform.issuedCount())
	}
}

func TestEnsureTokenStopsWaitingOnDeadline(t *testing.T) {
	e := newEngine(t)
	a := e.addAccount(t, "1001", "IND")

	unlock := e.tokens.locks.Lock(accountLockKey(a.ID))
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.tokens.EnsureToken(ctx, a.ID)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("EnsureToken err=%v want upstream unavailable", err)
	}
	if e.platform.issuedCount() != 0 {
		t.Fatalf("no token should be issued while the account is locked")
	}
}
