package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IssuedToken is a fresh credential returned by the game platform.
type IssuedToken struct {
	Credential string
	ExpiresAt  time.Time
}

type PlayerInfo struct {
	Name   string `json:"name"`
	UID    string `json:"uid"`
	Server string `json:"server"`
	Level  int    `json:"level"`
}

// LikeOutcome is the platform-reported result of a like submission.
type LikeOutcome struct {
	Player PlayerInfo
	Before int64
	After  int64
}

// PlatformClient is the game platform's auth and like API.
// Implementations map failures onto ErrCredentialRejected, ErrTargetNotFound
// and ErrUpstreamUnavailable.
type PlatformClient interface {
	Authenticate(ctx context.Context, uid, password, server string) (*IssuedToken, error)
	SendLikes(ctx context.Context, credential, server, targetUID string, count int) (*LikeOutcome, error)
}

// GamePlatformClient talks to the platform over HTTP.
type GamePlatformClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGamePlatformClient(baseURL string, timeout time.Duration) *GamePlatformClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GamePlatformClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	ExpiresIn int64  `json:"expires_in"`
}

func (c *GamePlatformClient) Authenticate(ctx context.Context, uid, password, server string) (*IssuedToken, error) {
	form := url.Values{
		"uid":      {uid},
		"password": {password},
		"server":   {server},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w (%d): %s", ErrCredentialRejected, status, truncate(body, 200))
	default:
		return nil, fmt.Errorf("%w: auth returned %d: %s", ErrUpstreamUnavailable, status, truncate(body, 200))
	}

	var parsed authResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode auth response: %v", ErrUpstreamUnavailable, err)
	}
	if parsed.Token == "" {
		return nil, fmt.Errorf("%w: auth response has no token", ErrUpstreamUnavailable)
	}

	var expiresAt time.Time
	switch {
	case parsed.ExpiresAt > 0:
		expiresAt = time.Unix(parsed.ExpiresAt, 0)
	case parsed.ExpiresIn > 0:
		expiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	default:
		return nil, fmt.Errorf("%w: auth response has no expiry", ErrUpstreamUnavailable)
	}

	return &IssuedToken{Credential: parsed.Token, ExpiresAt: expiresAt}, nil
}

type likeRequest struct {
	UID    string `json:"uid"`
	Server string `json:"server"`
	Count  int    `json:"count"`
}

type likeResponse struct {
	Player struct {
		Nickname string `json:"nickname"`
		UID      string `json:"uid"`
		Region   string `json:"region"`
		Level    int    `json:"level"`
	} `json:"player"`
	LikesBefore int64 `json:"likes_before"`
	LikesAfter  int64 `json:"likes_after"`
}

func (c *GamePlatformClient) SendLikes(ctx context.Context, credential, server, targetUID string, count int) (*LikeOutcome, error) {
	payload, err := json.Marshal(likeRequest{UID: targetUID, Server: server, Count: count})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/like", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build like request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: uid %s on %s", ErrTargetNotFound, targetUID, server)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w (%d)", ErrCredentialRejected, status)
	default:
		return nil, fmt.Errorf("%w: like returned %d: %s", ErrUpstreamUnavailable, status, truncate(body, 200))
	}

	var parsed likeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode like response: %v", ErrUpstreamUnavailable, err)
	}

	outcome := &LikeOutcome{
		Player: PlayerInfo{
			Name:   parsed.Player.Nickname,
			UID:    parsed.Player.UID,
			Server: parsed.Player.Region,
			Level:  parsed.Player.Level,
		},
		Before: parsed.LikesBefore,
		After:  parsed.LikesAfter,
	}
	if outcome.Player.UID == "" {
		outcome.Player.UID = targetUID
	}
	if outcome.Player.Server == "" {
		outcome.Player.Server = server
	}
	return outcome, nil
}

// do executes req; transport failures and timeouts become ErrUpstreamUnavailable.
func (c *GamePlatformClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n])
}
