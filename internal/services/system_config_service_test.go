package services

import (
	"context"
	"errors"
	"testing"
)

func TestSettingsUpdateAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	effective := map[string]string{"daily_like_cap": "100"}
	svc := NewSettingsService(db, func(key string) string { return effective[key] }, func(key string) string {
		if key == "daily_like_cap" {
			return "100"
		}
		return ""
	})

	var changed []string
	svc.OnChange(func(key, value string) {
		changed = append(changed, key+"="+value)
		effective[key] = value
	})

	got, err := svc.Update(ctx, "daily_like_cap", " 150 ")
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Value != "150" || got.Effective != "150" || !got.Live {
		t.Fatalf("Update result %+v", got)
	}
	if len(changed) != 1 || changed[0] != "daily_like_cap=150" {
		t.Fatalf("listeners got %v", changed)
	}
	if v := svc.Lookup("daily_like_cap"); v != "150" {
		t.Fatalf("Lookup got %q", v)
	}

	if _, err := svc.Update(ctx, "daily_like_cap", "200"); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != len(engineSettings) {
		t.Fatalf("List len=%d", len(list))
	}
	for _, s := range list {
		if s.Key == "daily_like_cap" && (!s.Stored || s.Value != "200") {
			t.Fatalf("stored setting %+v", s)
		}
		if s.Key == "token_sweep_interval" && s.Stored {
			t.Fatalf("unexpected stored %+v", s)
		}
	}

	if err := svc.Delete(ctx, "daily_like_cap"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v := svc.Lookup("daily_like_cap"); v != "" {
		t.Fatalf("Lookup after delete got %q", v)
	}
	if last := changed[len(changed)-1]; last != "daily_like_cap=100" {
		t.Fatalf("delete should restore the environment cap, listeners got %v", changed)
	}

	if _, err := svc.Update(ctx, "token_sweep_interval", "2m"); err != nil {
		t.Fatalf("Update sweep: %v", err)
	}
	before := len(changed)
	if err := svc.Delete(ctx, "token_sweep_interval"); err != nil {
		t.Fatalf("Delete sweep: %v", err)
	}
	if len(changed) != before {
		t.Fatalf("restart-only setting should not notify on delete: %v", changed)
	}
}

func TestSettingsValidation(t *testing.T) {
	svc := NewSettingsService(newTestDB(t), nil, nil)
	ctx := context.Background()

	tests := []struct {
		key, value string
		want       error
	}{
		{key: "nope", value: "1", want: ErrUnknownSetting},
		{key: "daily_like_cap", value: "-3", want: ErrValidation},
		{key: "daily_like_cap", value: "ten", want: ErrValidation},
		{key: "token_refresh_margin", value: "soon", want: ErrValidation},
	}
	for _, tt := range tests {
		if _, err := svc.Update(ctx, tt.key, tt.value); !errors.Is(err, tt.want) {
			t.Fatalf("Update(%s,%s) err=%v want %v", tt.key, tt.value, err, tt.want)
		}
	}
	if _, err := svc.Update(ctx, "token_refresh_margin", "10m"); err != nil {
		t.Fatalf("valid duration rejected: %v", err)
	}
}
