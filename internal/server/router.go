package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"custody-core/internal/handler"
	"custody-core/internal/handler/response"
	"custody-core/pkg/config"
	"custody-core/pkg/errno"
	"custody-core/pkg/monitor"
)

// identityMiddleware 从 X-User-ID 头取当前用户。
// 网关层完成认证后注入该头; 服务自身不做鉴权。
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || uid == 0 {
			response.ErrorWithStatus(c, http.StatusUnauthorized, errno.ErrTokenInvalid)
			c.Abort()
			return
		}
		c.Set("uid", uid)
		c.Next()
	}
}

// NewRouter 装配 HTTP 路由
func NewRouter(withdrawHandler *handler.WithdrawHandler, walletHandler *handler.WalletHandler) *gin.Engine {
	if config.Global.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	monitor.Init()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1", identityMiddleware())
	{
		api.GET("/assets", walletHandler.Assets)
		api.GET("/balances/:symbol", walletHandler.Balance)
		api.GET("/deposits", walletHandler.Deposits)
		api.POST("/withdrawals", withdrawHandler.Create)
		api.GET("/withdrawals", withdrawHandler.List)
	}

	return r
}
