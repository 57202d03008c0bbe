package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/config"
	"github.com/heliovolt/solshare/internal/dividend"
	dividenddomain "github.com/heliovolt/solshare/internal/dividend/domain"
	"github.com/heliovolt/solshare/internal/events"
	obslogger "github.com/heliovolt/solshare/internal/observability/logger"
	obsmetrics "github.com/heliovolt/solshare/internal/observability/metrics"
	obstracing "github.com/heliovolt/solshare/internal/observability/tracing"
	"github.com/heliovolt/solshare/internal/panel"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	"github.com/heliovolt/solshare/internal/provisioning"
	"github.com/heliovolt/solshare/internal/sale"
	saledomain "github.com/heliovolt/solshare/internal/sale/domain"
	"github.com/heliovolt/solshare/internal/shares"
	sharesdomain "github.com/heliovolt/solshare/internal/shares/domain"
	"github.com/heliovolt/solshare/internal/treasury"
	treasurydomain "github.com/heliovolt/solshare/internal/treasury/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	accesscontrol.Module,
	pause.Module,
	events.Module,
	panel.Module,
	shares.Module,
	treasury.Module,
	dividend.Module,
	sale.Module,
	provisioning.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	genID           *snowflake.Node
	authzSvc        accesscontrol.Service
	pauseSvc        pause.Service
	panelSvc        paneldomain.Service
	sharesSvc       sharesdomain.Service
	treasurySvc     treasurydomain.Service
	dividendSvc     dividenddomain.Service
	saleSvc         saledomain.Service
	provisioningSvc provisioning.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	GenID           *snowflake.Node
	AuthzSvc        accesscontrol.Service
	PauseSvc        pause.Service
	PanelSvc        paneldomain.Service
	SharesSvc       sharesdomain.Service
	TreasurySvc     treasurydomain.Service
	DividendSvc     dividenddomain.Service
	SaleSvc         saledomain.Service
	ProvisioningSvc provisioning.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		genID:           p.GenID,
		authzSvc:        p.AuthzSvc,
		pauseSvc:        p.PauseSvc,
		panelSvc:        p.PanelSvc,
		sharesSvc:       p.SharesSvc,
		treasurySvc:     p.TreasurySvc,
		dividendSvc:     p.DividendSvc,
		saleSvc:         p.SaleSvc,
		provisioningSvc: p.ProvisioningSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", ActorContext())

	// -------- Panels --------
	api.POST("/panels", s.RegisterPanel)
	api.GET("/panels", s.ListPanelsByOwner)
	api.GET("/panels/:id", s.GetPanel)
	api.GET("/panels/serial/:serial", s.GetPanelBySerial)
	api.PATCH("/panels/:id", s.UpdatePanelMetadata)
	api.POST("/panels/:id/status", s.SetPanelStatus)
	api.POST("/panels/:id/ledger", s.LinkShareLedger)

	// -------- Shares --------
	api.POST("/ledgers", s.CreateLedger)
	api.GET("/panels/:id/shares", s.GetLedgerDetails)
	api.GET("/panels/:id/shares/holders", s.ListHolders)
	api.GET("/panels/:id/shares/balance/:address", s.GetBalance)
	api.GET("/panels/:id/shares/allowance", s.GetAllowance)
	api.POST("/panels/:id/shares/mint", s.MintShares)
	api.POST("/panels/:id/shares/transfer", s.TransferShares)
	api.POST("/panels/:id/shares/transfer_from", s.TransferSharesFrom)
	api.POST("/panels/:id/shares/approve", s.ApproveShares)

	// -------- Dividends --------
	api.POST("/panels/:id/dividends", s.DistributeDividend)
	api.GET("/panels/:id/dividends", s.DividendHistory)
	api.GET("/panels/:id/dividends/unclaimed/:address", s.GetUnclaimed)
	api.POST("/panels/:id/dividends/claim", s.ClaimDividends)

	// -------- Sales --------
	api.POST("/sales", s.CreateSale)
	api.GET("/sales/:id", s.GetSale)
	api.GET("/panels/:id/sales", s.ListSalesByPanel)
	api.POST("/sales/:id/buy", s.BuyShares)
	api.POST("/sales/:id/close", s.CloseSale)

	// -------- Provisioning --------
	api.POST("/provisioning/panels", s.CreatePanelWithShares)
	api.POST("/provisioning/batch", s.CreatePanelBatch)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", ActorContext())

	admin.POST("/roles/grant", s.GrantRole)
	admin.POST("/roles/revoke", s.RevokeRole)
	admin.GET("/roles/:role/accounts/:account", s.HasRole)

	admin.POST("/pause", s.PauseSystem)
	admin.POST("/unpause", s.UnpauseSystem)
	admin.GET("/paused", s.PausedState)

	admin.POST("/treasury/credit", s.CreditTreasury)
	admin.GET("/treasury/:address", s.TreasuryBalance)
}
