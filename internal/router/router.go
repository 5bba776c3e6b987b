package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"madebuy/internal/controller"
	"madebuy/internal/middleware"
)

// Controllers 需要注册的控制器
type Controllers struct {
	Auth     *controller.AuthController
	Etsy     *controller.EtsyController
	Shipping *controller.ShippingProfileController
}

// New 创建带日志与 panic 恢复的 engine 并注册路由
func New(ctls *Controllers, limiter *middleware.SyncRateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))
	InitRoutes(r, ctls, limiter)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls *Controllers, limiter *middleware.SyncRateLimiter) {
	if limiter == nil {
		limiter = middleware.NewSyncRateLimiter()
	}

	// 1. 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
	})

	// 2. API 路由组
	api := r.Group("/api/v1")
	{
		// GET /api/v1/etsy/callback
		// Etsy 只允许配置一个固定回调地址，租户信息在 state 中
		api.GET("/etsy/callback", ctls.Auth.Callback)

		tenant := api.Group("/tenants/:tenantId")

		// etsy 授权与店铺级同步
		etsy := tenant.Group("/etsy")
		{
			etsy.GET("/connect", ctls.Auth.Connect)
			etsy.GET("/connection", ctls.Auth.GetConnection)
			etsy.POST("/refresh", ctls.Auth.Refresh)
			etsy.GET("/listings", ctls.Etsy.ListListings)
			etsy.POST("/sync",
				middleware.SyncRateLimit(limiter, middleware.SyncTypeBatch, 0),
				ctls.Etsy.SyncBatch)
		}

		// 商品同步
		piece := tenant.Group("/pieces/:pieceId/etsy")
		{
			piece.GET("/status", ctls.Etsy.GetStatus)
			piece.PUT("/sync-enabled", ctls.Etsy.SetSyncEnabled)
			piece.POST("/sync",
				middleware.SyncRateLimit(limiter, middleware.SyncTypePiece, 0),
				ctls.Etsy.SyncPiece)
			piece.POST("/inventory",
				middleware.SyncRateLimit(limiter, middleware.SyncTypeInventory, 0),
				ctls.Etsy.SyncInventory)
			piece.POST("/images",
				middleware.SyncRateLimit(limiter, middleware.SyncTypeImages, 0),
				ctls.Etsy.SyncImages)
			piece.DELETE("/listing", ctls.Etsy.DeleteListing)
		}

		// 运费模板
		shipping := tenant.Group("/shipping-profiles")
		{
			shipping.GET("", ctls.Shipping.ListProfiles)
			shipping.POST("", ctls.Shipping.CreateProfile)
			shipping.GET("/summary", ctls.Shipping.GetSummary)
			shipping.GET("/default", ctls.Shipping.GetDefaultProfile)
			shipping.POST("/quote", ctls.Shipping.Quote)

			shipping.GET("/:id", ctls.Shipping.GetProfile)
			shipping.PATCH("/:id", ctls.Shipping.UpdateProfile)
			shipping.DELETE("/:id", ctls.Shipping.DeleteProfile)
			shipping.POST("/:id/default", ctls.Shipping.SetDefault)
			shipping.PUT("/:id/active", ctls.Shipping.SetActive)

			shipping.POST("/:id/zones", ctls.Shipping.AddZone)
			shipping.PATCH("/:id/zones/:zoneId", ctls.Shipping.UpdateZone)
			shipping.DELETE("/:id/zones/:zoneId", ctls.Shipping.RemoveZone)
		}
	}
}
