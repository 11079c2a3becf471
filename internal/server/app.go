package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
)

// App 持有 HTTP 服务的生命周期
type App struct {
	httpServer *http.Server
}

func NewApp(router *gin.Engine, port string) *App {
	return &App{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second, // 提现接口同步等待回执, 上限要覆盖 receipt_wait
		},
	}
}

// Run 阻塞运行直到服务退出
func (a *App) Run() error {
	logger.Info("http server starting", zap.String("addr", a.httpServer.Addr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅下线: 等待在途请求完成
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("http server shutting down")
	return a.httpServer.Shutdown(ctx)
}
