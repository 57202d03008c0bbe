package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type distributeRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) DistributeDividend(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req distributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	distribution, err := s.dividendSvc.Distribute(c.Request.Context(), panelID, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"seq":         distribution.Seq,
		"amount":      distribution.Amount,
		"occurred_at": distribution.OccurredAt,
	}})
}

func (s *Server) DividendHistory(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entries, err := s.dividendSvc.History(c.Request.Context(), panelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) GetUnclaimed(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	amount, err := s.dividendSvc.Unclaimed(c.Request.Context(), panelID, c.Param("address"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"unclaimed": amount}})
}

func (s *Server) ClaimDividends(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	amount, err := s.dividendSvc.Claim(c.Request.Context(), panelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"claimed": amount}})
}
