package models

import (
	"testing"
	"time"
)

func TestNormalizeServer(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "ind", want: "IND", ok: true},
		{in: " sac ", want: "SAC", ok: true},
		{in: "xx", want: "XX", ok: false},
		{in: "", want: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := NormalizeServer(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("NormalizeServer(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	for _, code := range Servers {
		if ServerNames[code] == "" {
			t.Fatalf("server %s has no display name", code)
		}
	}
}

func TestTokenStatus(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := &Token{ExpiresAt: now.Add(time.Minute)}
	if !tok.IsValid(now) {
		t.Fatalf("fresh token should be valid")
	}
	if tok.Status(now.Add(time.Minute)) != TokenStatusExpired {
		t.Fatalf("token at expiry should be expired")
	}
	tok.SupersededAt = &now
	if tok.IsValid(now) {
		t.Fatalf("superseded token should not be valid")
	}
}

func TestUserPassword(t *testing.T) {
	u := &User{}
	if err := u.SetPassword("hunter22"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if !u.CheckPassword("hunter22") || u.CheckPassword("hunter23") {
		t.Fatalf("password check mismatch")
	}
}
