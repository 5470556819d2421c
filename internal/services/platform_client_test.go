package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGamePlatformAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Form.Get("uid") {
		case "1":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": "abc", "expires_in": 3600})
		case "2":
			w.WriteHeader(http.StatusUnauthorized)
		case "3":
			_, _ = w.Write([]byte("not json"))
		case "4":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": "abc"})
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	client := NewGamePlatformClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	issued, err := client.Authenticate(ctx, "1", "pw", "IND")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if issued.Credential != "abc" || time.Until(issued.ExpiresAt) < 59*time.Minute {
		t.Fatalf("issued %+v", issued)
	}

	tests := []struct {
		uid  string
		want error
	}{
		{uid: "2", want: ErrCredentialRejected},
		{uid: "3", want: ErrUpstreamUnavailable},
		{uid: "4", want: ErrUpstreamUnavailable},
		{uid: "5", want: ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		if _, err := client.Authenticate(ctx, tt.uid, "pw", "IND"); !errors.Is(err, tt.want) {
			t.Fatalf("uid %s: got %v want %v", tt.uid, err, tt.want)
		}
	}
}

func TestGamePlatformSendLikes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body likeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch body.UID {
		case "404":
			w.WriteHeader(http.StatusNotFound)
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"player":       map[string]interface{}{"nickname": "Neo", "uid": body.UID, "region": body.Server, "level": 61},
				"likes_before": 100,
				"likes_after":  100 + body.Count,
			})
		}
	}))
	defer srv.Close()

	client := NewGamePlatformClient(srv.URL, time.Second)
	ctx := context.Background()

	out, err := client.SendLikes(ctx, "good", "IND", "5555", 7)
	if err != nil {
		t.Fatalf("SendLikes error: %v", err)
	}
	if out.Player.Name != "Neo" || out.Player.Level != 61 || out.Before != 100 || out.After != 107 {
		t.Fatalf("outcome %+v", out)
	}

	if _, err := client.SendLikes(ctx, "good", "IND", "404", 1); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("404 err=%v", err)
	}
	if _, err := client.SendLikes(ctx, "good", "IND", "500", 1); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("500 err=%v", err)
	}
	if _, err := client.SendLikes(ctx, "stale", "IND", "1", 1); !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("401 err=%v", err)
	}
}

func TestGamePlatformTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	client := NewGamePlatformClient(srv.URL, 50*time.Millisecond)
	if _, err := client.SendLikes(context.Background(), "t", "IND", "1", 1); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("timeout err=%v", err)
	}
}
