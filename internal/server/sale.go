package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	saledomain "github.com/heliovolt/solshare/internal/sale/domain"
)

type createSaleRequest struct {
	PanelID       string    `json:"panel_id"`
	PricePerShare int64     `json:"price_per_share"`
	SharesForSale int64     `json:"shares_for_sale"`
	EndsAt        time.Time `json:"ends_at"`
}

type buySharesRequest struct {
	Quantity int64 `json:"quantity"`
}

type saleResponse struct {
	ID            string    `json:"id"`
	PanelID       string    `json:"panel_id"`
	SellerAddress string    `json:"seller_address"`
	PricePerShare int64     `json:"price_per_share"`
	SharesForSale int64     `json:"shares_for_sale"`
	SharesSold    int64     `json:"shares_sold"`
	EndsAt        time.Time `json:"ends_at"`
	Active        bool      `json:"active"`
}

func toSaleResponse(sale saledomain.Sale) saleResponse {
	return saleResponse{
		ID:            sale.ID.String(),
		PanelID:       sale.PanelID.String(),
		SellerAddress: sale.SellerAddress,
		PricePerShare: sale.PricePerShare,
		SharesForSale: sale.SharesForSale,
		SharesSold:    sale.SharesSold,
		EndsAt:        sale.EndsAt,
		Active:        sale.Active,
	}
}

func (s *Server) CreateSale(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	panelID, err := parseIDString(req.PanelID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sale, err := s.saleSvc.Create(c.Request.Context(), saledomain.CreateSaleRequest{
		PanelID:       panelID,
		PricePerShare: req.PricePerShare,
		SharesForSale: req.SharesForSale,
		EndsAt:        req.EndsAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toSaleResponse(sale)})
}

func (s *Server) GetSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	sale, err := s.saleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toSaleResponse(sale)})
}

func (s *Server) ListSalesByPanel(c *gin.Context) {
	panelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	items, err := s.saleSvc.ListByPanel(c.Request.Context(), panelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sales := make([]saleResponse, 0, len(items))
	for _, item := range items {
		sales = append(sales, toSaleResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"data": sales})
}

func (s *Server) BuyShares(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req buySharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sale, err := s.saleSvc.Buy(c.Request.Context(), id, req.Quantity)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toSaleResponse(sale)})
}

func (s *Server) CloseSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.saleSvc.Close(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}
