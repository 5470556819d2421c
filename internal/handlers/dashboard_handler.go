package handlers

import (
	"net/http"
	"strconv"

	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	stats *services.StatsService
	quota *services.QuotaService
}

func NewDashboardHandler(stats *services.StatsService, quota *services.QuotaService) *DashboardHandler {
	return &DashboardHandler{stats: stats, quota: quota}
}

func queryInt(c *gin.Context, key string, fallback, min, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Stats GET /admin/dashboard/stats?days=7
func (h *DashboardHandler) Stats(c *gin.Context) {
	days := queryInt(c, "days", 7, 1, 90)
	dash, err := h.stats.Dashboard(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, dash)
}

// RecentLikes GET /admin/dashboard/recent-likes?limit=50
func (h *DashboardHandler) RecentLikes(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 1, 500)
	items, err := h.stats.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

// Usage GET /admin/usage/:uid?days=7 returns today's quota and the per-day
// history of one target, newest day first.
func (h *DashboardHandler) Usage(c *gin.Context) {
	uid := c.Param("uid")
	today, err := h.quota.Peek(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	days := queryInt(c, "days", 7, 1, 90)
	history, err := h.quota.History(c.Request.Context(), today.TargetUID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"uid":     today.TargetUID,
		"today":   today,
		"days":    days,
		"history": history,
	})
}
