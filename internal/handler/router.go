package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"grapevpn/keyhub/internal/config"
	"grapevpn/keyhub/internal/handler/middleware"
	"grapevpn/keyhub/internal/metrics"
	jwtpkg "grapevpn/keyhub/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	m *metrics.Metrics,
	redeemHandler *RedeemHandler,
	memberHandler *MemberHandler,
	adminHandler *AdminHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// VPN server API
	r.POST("/redeem", redeemHandler.Redeem)
	r.POST("/issue_jwt", redeemHandler.IssueJWT)

	members := r.Group("/api/v1/members")
	members.Use(middleware.BearerAuth(jwtManager))
	{
		members.POST("", memberHandler.Register)
		members.POST("/:id/tokens", memberHandler.RequestToken)
		members.GET("/:id/tokens", memberHandler.ListTokens)
		members.GET("/:id/referrals", memberHandler.Referrals)
	}

	if adminHandler != nil {
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.AdminSecret(jwtManager))
		{
			admin.GET("/accounts", adminHandler.ListAccounts)
			admin.GET("/tokens", adminHandler.ListTokens)
			admin.POST("/accounts/:id/tokens", adminHandler.GrantToken)
			admin.PUT("/accounts/:id/paid", adminHandler.MarkPaid)
			admin.GET("/export.csv", adminHandler.ExportCSV)
			admin.POST("/broadcast", adminHandler.Broadcast)

			admin.POST("/sessions/:admin_id", adminHandler.BeginSession)
			admin.POST("/sessions/:admin_id/input", adminHandler.SubmitInput)
			admin.DELETE("/sessions/:admin_id", adminHandler.CancelSession)
		}
	}

	return r
}
