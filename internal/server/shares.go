package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	sharesdomain "github.com/heliovolt/solshare/internal/shares/domain"
)

type createLedgerRequest struct {
	PanelID string `json:"panel_id"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type mintSharesRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type transferSharesRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type transferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type approveSharesRequest struct {
	Spender string `json:"spender"`
	Amount  int64  `json:"amount"`
}

type ledgerResponse struct {
	ID          string `json:"id"`
	PanelID     string `json:"panel_id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply int64  `json:"total_supply"`
	Minted      bool   `json:"minted"`
}

func toLedgerResponse(ledger sharesdomain.Ledger) ledgerResponse {
	return ledgerResponse{
		ID:          ledger.ID.String(),
		PanelID:     ledger.PanelID.String(),
		Name:        ledger.Name,
		Symbol:      ledger.Symbol,
		TotalSupply: ledger.TotalSupply,
		Minted:      ledger.Minted,
	}
}

func (s *Server) CreateLedger(c *gin.Context) {
	var req createLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	panelID, err := parseIDString(req.PanelID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ledger, err := s.sharesSvc.CreateLedger(c.Request.Context(), sharesdomain.CreateLedgerRequest{
		PanelID: panelID,
		Name:    strings.TrimSpace(req.Name),
		Symbol:  strings.TrimSpace(req.Symbol),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toLedgerResponse(ledger)})
}

func (s *Server) GetLedgerDetails(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ledger, err := s.sharesSvc.LedgerDetails(c.Request.Context(), panelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toLedgerResponse(ledger)})
}

func (s *Server) ListHolders(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	holdings, err := s.sharesSvc.Holders(c.Request.Context(), panelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	type holderResponse struct {
		Address string `json:"address"`
		Balance int64  `json:"balance"`
	}
	holders := make([]holderResponse, 0, len(holdings))
	for _, holding := range holdings {
		holders = append(holders, holderResponse{
			Address: holding.Address,
			Balance: holding.Balance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": holders})
}

func (s *Server) GetBalance(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	balance, err := s.sharesSvc.BalanceOf(c.Request.Context(), panelID, c.Param("address"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"balance": balance}})
}

func (s *Server) GetAllowance(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var query struct {
		Owner   string `form:"owner"`
		Spender string `form:"spender"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	amount, err := s.sharesSvc.AllowanceOf(c.Request.Context(), panelID, query.Owner, query.Spender)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"allowance": amount}})
}

func (s *Server) MintShares(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req mintSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ledger, err := s.sharesSvc.Mint(c.Request.Context(), panelID, strings.TrimSpace(req.To), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toLedgerResponse(ledger)})
}

func (s *Server) TransferShares(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req transferSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.sharesSvc.Transfer(c.Request.Context(), panelID, strings.TrimSpace(req.To), req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (s *Server) TransferSharesFrom(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req transferFromRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err := s.sharesSvc.TransferFrom(c.Request.Context(), panelID, strings.TrimSpace(req.From), strings.TrimSpace(req.To), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (s *Server) ApproveShares(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req approveSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.sharesSvc.Approve(c.Request.Context(), panelID, strings.TrimSpace(req.Spender), req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}
