package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type creditRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func (s *Server) GrantRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.authzSvc.GrantRole(c.Request.Context(), strings.TrimSpace(req.Role), strings.TrimSpace(req.Account)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "granted"})
}

func (s *Server) RevokeRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.authzSvc.RevokeRole(c.Request.Context(), strings.TrimSpace(req.Role), strings.TrimSpace(req.Account)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func (s *Server) HasRole(c *gin.Context) {
	has, err := s.authzSvc.HasRole(c.Request.Context(), strings.TrimSpace(c.Param("role")), strings.TrimSpace(c.Param("account")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"has_role": has}})
}

func (s *Server) PauseSystem(c *gin.Context) {
	if err := s.pauseSvc.Pause(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) UnpauseSystem(c *gin.Context) {
	if err := s.pauseSvc.Unpause(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

func (s *Server) PausedState(c *gin.Context) {
	paused, err := s.pauseSvc.Paused(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"paused": paused}})
}

func (s *Server) CreditTreasury(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.treasurySvc.Credit(c.Request.Context(), strings.TrimSpace(req.To), req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "credited"})
}

func (s *Server) TreasuryBalance(c *gin.Context) {
	balance, err := s.treasurySvc.BalanceOf(c.Request.Context(), c.Param("address"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"balance": balance}})
}
