package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	accountService *services.AccountService
	tokenService   *services.TokenService
}

func NewAccountHandler(accounts *services.AccountService, tokens *services.TokenService) *AccountHandler {
	return &AccountHandler{accountService: accounts, tokenService: tokens}
}

// accountView is an account with its current token state for the panel.
type accountView struct {
	models.Account
	TokenStatus    string     `json:"token_status"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func (h *AccountHandler) view(c *gin.Context, account models.Account) (accountView, error) {
	v := accountView{Account: account, TokenStatus: "missing"}
	token, err := h.tokenService.Current(c.Request.Context(), account.ID)
	if err != nil {
		return v, err
	}
	if token != nil {
		v.TokenStatus = token.Status(time.Now())
		expires := token.ExpiresAt
		v.TokenExpiresAt = &expires
	}
	return v, nil
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid account id")
		return 0, false
	}
	return uint(id), true
}

func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountService.List(c.Request.Context(), c.Query("server"))
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		v, err := h.view(c, a)
		if err != nil {
			respondError(c, err)
			return
		}
		views = append(views, v)
	}
	c.Header("X-Total-Count", strconv.Itoa(len(views)))
	respondOK(c, http.StatusOK, views)
}

func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	account, err := h.accountService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.view(c, *account)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, v)
}

func (h *AccountHandler) Create(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "uid, password and server are required")
		return
	}

	account, err := h.accountService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[account] created %d (%s/%s)", account.ID, account.Server, account.UID)
	respondOK(c, http.StatusCreated, account)
}

func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	account, passwordChanged, err := h.accountService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	if passwordChanged {
		if err := h.tokenService.Revoke(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
	}
	respondOK(c, http.StatusOK, account)
}

func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.accountService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.tokenService.Purge(c.Request.Context(), id); err != nil {
		log.Printf("[WARN] purge tokens of deleted account %d: %v", id, err)
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Account deleted", "id": id})
}

// Refresh issues a new token for one account.
func (h *AccountHandler) Refresh(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	token, err := h.tokenService.Refresh(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"account_id": id,
		"issued_at":  token.IssuedAt,
		"expires_at": token.ExpiresAt,
	})
}

type serverView struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Accounts int64  `json:"accounts"`
}

// Servers lists every known server with its account count.
func (h *AccountHandler) Servers(c *gin.Context) {
	counts, err := h.accountService.CountByServer(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]serverView, 0, len(models.Servers))
	for _, code := range models.Servers {
		out = append(out, serverView{Code: code, Name: models.ServerNames[code], Accounts: counts[code]})
	}
	respondOK(c, http.StatusOK, out)
}
