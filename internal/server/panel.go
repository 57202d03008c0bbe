package server

import (
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
)

type registerPanelRequest struct {
	SerialNumber string  `json:"serial_number"`
	Manufacturer string  `json:"manufacturer"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	CapacityKW   float64 `json:"capacity_kw"`
	Owner        string  `json:"owner,omitempty"`
}

type updatePanelRequest struct {
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	CapacityKW float64 `json:"capacity_kw"`
}

type setPanelStatusRequest struct {
	Active bool `json:"active"`
}

type linkLedgerRequest struct {
	LedgerID string `json:"ledger_id"`
}

// kwToWatts converts the boundary unit to the stored one. Capacity is kept
// in whole watts internally.
func kwToWatts(kw float64) int64 {
	return int64(math.Round(kw * 1000))
}

func wattsToKW(watts int64) float64 {
	return float64(watts) / 1000
}

type panelResponse struct {
	ID           string  `json:"id"`
	SerialNumber string  `json:"serial_number"`
	Manufacturer string  `json:"manufacturer"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	CapacityKW   float64 `json:"capacity_kw"`
	OwnerAddress string  `json:"owner_address"`
	Active       bool    `json:"active"`
	LedgerID     string  `json:"ledger_id,omitempty"`
	RegisteredAt string  `json:"registered_at"`
}

func toPanelResponse(panel paneldomain.Panel) panelResponse {
	resp := panelResponse{
		ID:           panel.ID.String(),
		SerialNumber: panel.SerialNumber,
		Manufacturer: panel.Manufacturer,
		Name:         panel.Name,
		Location:     panel.Location,
		CapacityKW:   wattsToKW(panel.CapacityWatts),
		OwnerAddress: panel.OwnerAddress,
		Active:       panel.Active,
		RegisteredAt: panel.RegisteredAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if panel.ShareLedgerID != nil {
		resp.LedgerID = panel.ShareLedgerID.String()
	}
	return resp
}

func (s *Server) RegisterPanel(c *gin.Context) {
	var req registerPanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	domainReq := paneldomain.RegisterPanelRequest{
		SerialNumber:  strings.TrimSpace(req.SerialNumber),
		Manufacturer:  strings.TrimSpace(req.Manufacturer),
		Name:          strings.TrimSpace(req.Name),
		Location:      strings.TrimSpace(req.Location),
		CapacityWatts: kwToWatts(req.CapacityKW),
	}

	var (
		panel paneldomain.Panel
		err   error
	)
	if owner := strings.TrimSpace(req.Owner); owner != "" {
		panel, err = s.panelSvc.RegisterFor(c.Request.Context(), owner, domainReq)
	} else {
		panel, err = s.panelSvc.Register(c.Request.Context(), domainReq)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toPanelResponse(panel)})
}

func (s *Server) GetPanel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	panel, err := s.panelSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPanelResponse(panel)})
}

func (s *Server) GetPanelBySerial(c *gin.Context) {
	panel, err := s.panelSvc.GetBySerialNumber(c.Request.Context(), c.Param("serial"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPanelResponse(panel)})
}

func (s *Server) ListPanelsByOwner(c *gin.Context) {
	var query struct {
		Owner     string `form:"owner"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.panelSvc.ListByOwner(c.Request.Context(), paneldomain.ListByOwnerRequest{
		Owner:     strings.TrimSpace(query.Owner),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	panels := make([]panelResponse, 0, len(resp.Panels))
	for _, panel := range resp.Panels {
		panels = append(panels, toPanelResponse(panel))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":            panels,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	})
}

func (s *Server) UpdatePanelMetadata(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updatePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	panel, err := s.panelSvc.UpdateMetadata(c.Request.Context(), paneldomain.UpdateMetadataRequest{
		ID:            id,
		Name:          strings.TrimSpace(req.Name),
		Location:      strings.TrimSpace(req.Location),
		CapacityWatts: kwToWatts(req.CapacityKW),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPanelResponse(panel)})
}

func (s *Server) SetPanelStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req setPanelStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	panel, err := s.panelSvc.SetStatus(c.Request.Context(), id, req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPanelResponse(panel)})
}

func (s *Server) LinkShareLedger(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req linkLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	ledgerID, err := parseIDString(req.LedgerID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.panelSvc.LinkShareLedger(c.Request.Context(), id, ledgerID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "linked"})
}
