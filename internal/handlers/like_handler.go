package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

// LikeHandler serves the public API used by the like sender and dashboard.
type LikeHandler struct {
	dispatch *services.DispatchService
	quota    *services.QuotaService
	tokens   *services.TokenService
	stats    *services.StatsService
}

func NewLikeHandler(dispatch *services.DispatchService, quota *services.QuotaService, tokens *services.TokenService, stats *services.StatsService) *LikeHandler {
	return &LikeHandler{dispatch: dispatch, quota: quota, tokens: tokens, stats: stats}
}

func (h *LikeHandler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "ff-like",
		"timestamp": time.Now(),
	})
}

func management(u services.Usage) gin.H {
	return gin.H{
		"used_today":      u.UsedToday,
		"remaining_today": u.RemainingToday,
		"reset_time":      u.ResetTimeString(),
	}
}

// Like GET /like?uid=&server_name=&like_count=
func (h *LikeHandler) Like(c *gin.Context) {
	uid := strings.TrimSpace(c.Query("uid"))
	server := strings.TrimSpace(c.Query("server_name"))
	if uid == "" || server == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uid and server_name are required"})
		return
	}

	count := services.DefaultLikeCount
	if raw := strings.TrimSpace(c.Query("like_count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "like_count must be an integer"})
			return
		}
		count = n
	}

	res, err := h.dispatch.Dispatch(c.Request.Context(), services.DispatchRequest{
		TargetUID: uid,
		Server:    server,
		Count:     count,
	})
	if err != nil {
		h.likeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": 1,
		"player_info": gin.H{
			"name":   res.Player.Name,
			"uid":    res.Player.UID,
			"server": res.Player.Server,
			"level":  res.Player.Level,
		},
		"Like_analytics": gin.H{
			"before": res.BeforeCount,
			"after":  res.AfterCount,
			"added":  res.LikesSent,
		},
		"Management": management(res.Usage),
		"requested":  res.Requested,
	})
}

func (h *LikeHandler) likeError(c *gin.Context, err error) {
	body := gin.H{
		"status": 0,
		"error":  err.Error(),
		"kind":   services.ErrorKind(err),
	}

	var limitErr *services.LimitReachedError
	var dispatchErr *services.DispatchError
	switch {
	case errors.As(err, &limitErr):
		body["error"] = "Daily like limit reached for this UID"
		body["Management"] = management(limitErr.Usage)
	case errors.As(err, &dispatchErr):
		body["Management"] = management(dispatchErr.Usage)
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		body["error"] = "internal server error"
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

// DailyStats GET /daily-stats/:uid
func (h *LikeHandler) DailyStats(c *gin.Context) {
	usage, err := h.quota.Peek(c.Request.Context(), c.Param("uid"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uid":               usage.TargetUID,
		"mongodb_connected": h.stats.StorageStats(c.Request.Context()).Connected,
		"daily_stats": gin.H{
			"used_today":      usage.UsedToday,
			"remaining_today": usage.RemainingToday,
			"can_send_more":   usage.CanSendMore,
			"reset_time":      usage.ResetTimeString(),
			"daily_cap":       usage.Cap,
		},
	})
}

// StorageStats GET /mongodb-stats
func (h *LikeHandler) StorageStats(c *gin.Context) {
	st := h.stats.StorageStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"connected":         st.Connected,
		"mongodb_connected": st.Connected,
		"statistics":        st.Statistics,
		"timestamp":         st.Timestamp,
	})
}

// ForceRefresh GET /force-refresh
func (h *LikeHandler) ForceRefresh(c *gin.Context) {
	report, err := h.tokens.RefreshAll(c.Request.Context(), "")
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "completed",
		"run_id":    report.RunID,
		"total":     report.Total,
		"refreshed": report.Refreshed,
		"failed":    report.Failed,
		"timestamp": report.FinishedAt,
	})
}

// TokenStats GET /token-stats
func (h *LikeHandler) TokenStats(c *gin.Context) {
	status, err := h.tokens.Status(c.Request.Context(), "")
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// DebugRequest GET /debug-request/:uid/:server
func (h *LikeHandler) DebugRequest(c *gin.Context) {
	in, err := h.dispatch.Inspect(c.Request.Context(), c.Param("uid"), c.Param("server"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": services.ErrorKind(err)})
		return
	}
	c.JSON(http.StatusOK, in)
}
