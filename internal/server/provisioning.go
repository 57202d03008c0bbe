package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heliovolt/solshare/internal/provisioning"
)

type provisionPanelRequest struct {
	SerialNumber string  `json:"serial_number"`
	Manufacturer string  `json:"manufacturer"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	CapacityKW   float64 `json:"capacity_kw"`
	TokenName    string  `json:"token_name"`
	TokenSymbol  string  `json:"token_symbol"`
	TotalShares  int64   `json:"total_shares"`
	Sale         *struct {
		PricePerShare int64     `json:"price_per_share"`
		EndsAt        time.Time `json:"ends_at"`
	} `json:"sale,omitempty"`
}

type provisionBatchRequest struct {
	Panels []provisionPanelRequest `json:"panels"`
	Owners []string                `json:"owners"`
}

type provisionResponse struct {
	Panel  panelResponse  `json:"panel"`
	Ledger ledgerResponse `json:"ledger"`
	Sale   *saleResponse  `json:"sale,omitempty"`
}

func toProvisionRequest(req provisionPanelRequest) provisioning.CreatePanelRequest {
	out := provisioning.CreatePanelRequest{
		SerialNumber:  strings.TrimSpace(req.SerialNumber),
		Manufacturer:  strings.TrimSpace(req.Manufacturer),
		Name:          strings.TrimSpace(req.Name),
		Location:      strings.TrimSpace(req.Location),
		CapacityWatts: kwToWatts(req.CapacityKW),
		TokenName:     strings.TrimSpace(req.TokenName),
		TokenSymbol:   strings.TrimSpace(req.TokenSymbol),
		TotalShares:   req.TotalShares,
	}
	if req.Sale != nil {
		out.Sale = &provisioning.SaleTerms{
			PricePerShare: req.Sale.PricePerShare,
			EndsAt:        req.Sale.EndsAt,
		}
	}
	return out
}

func toProvisionResponse(result provisioning.Result) provisionResponse {
	resp := provisionResponse{
		Panel:  toPanelResponse(result.Panel),
		Ledger: toLedgerResponse(result.Ledger),
	}
	if result.Sale != nil {
		sale := toSaleResponse(*result.Sale)
		resp.Sale = &sale
	}
	return resp
}

func (s *Server) CreatePanelWithShares(c *gin.Context) {
	var req provisionPanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.provisioningSvc.CreatePanelWithShares(c.Request.Context(), toProvisionRequest(req))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toProvisionResponse(result)})
}

func (s *Server) CreatePanelBatch(c *gin.Context) {
	var req provisionBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	reqs := make([]provisioning.CreatePanelRequest, 0, len(req.Panels))
	for _, item := range req.Panels {
		reqs = append(reqs, toProvisionRequest(item))
	}
	results, err := s.provisioningSvc.CreatePanelBatch(c.Request.Context(), reqs, req.Owners)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]provisionResponse, 0, len(results))
	for _, result := range results {
		out = append(out, toProvisionResponse(result))
	}
	c.JSON(http.StatusCreated, gin.H{"data": out})
}
