package handlers

import (
	"net/http"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	tokenService *services.TokenService
}

func NewTokenHandler(tokens *services.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokens}
}

type refreshRequest struct {
	Server string `json:"server"`
}

// Refresh refreshes every account, or one server's accounts when server is given.
func (h *TokenHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	if req.Server != "" {
		if _, ok := models.NormalizeServer(req.Server); !ok {
			respondError(c, services.ErrInvalidServer)
			return
		}
	}

	report, err := h.tokenService.RefreshAll(c.Request.Context(), req.Server)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

func (h *TokenHandler) Status(c *gin.Context) {
	server := c.Query("server")
	if server != "" {
		if _, ok := models.NormalizeServer(server); !ok {
			respondError(c, services.ErrInvalidServer)
			return
		}
	}
	status, err := h.tokenService.Status(c.Request.Context(), server)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, status)
}
