package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/docs"
	"github.com/fatflowers/subsync/internal/app/api/handlers"
	mw "github.com/fatflowers/subsync/internal/app/api/middleware"
	"github.com/fatflowers/subsync/internal/app/service/checkout"
	"github.com/fatflowers/subsync/internal/app/service/discount"
	nh "github.com/fatflowers/subsync/internal/app/service/notification_handler"
	"github.com/fatflowers/subsync/internal/app/service/statistics"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/app/service/verification"
	cfgpkg "github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/metrics"
	"github.com/fatflowers/subsync/pkg/ratelimit"
)

func newEngine(cfg *cfgpkg.Config, hm *metrics.HTTPMetrics) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	if hm != nil {
		r.Use(hm.HandlerFunc())
	}
	return r
}

type routeParams struct {
	fx.In

	Engine       *gin.Engine
	Log          *zap.SugaredLogger
	Config       *cfgpkg.Config
	Limiter      *ratelimit.Limiter
	Subscription *subscription.Engine
	Checkout     *checkout.Service
	Verification *verification.Service
	Discount     *discount.Service
	Statistics   *statistics.Service
	Webhooks     *nh.NotificationHandler
}

func registerRoutes(p routeParams) {
	r, log := p.Engine, p.Log

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	// Providers authenticate themselves by signature.
	handlers.RegisterWebhookRoutes(apiV1, p.Webhooks)

	user := apiV1.Group("", mw.RateLimitMiddleware(p.Limiter, log), mw.SessionAuth(p.Config))
	handlers.RegisterUserRoutes(user, p.Checkout, p.Verification, p.Discount, p.Subscription)

	admin := apiV1.Group("/admin", mw.AdminAuth(p.Config))
	handlers.RegisterAdminRoutes(admin, p.Verification, p.Discount, p.Subscription.Store(), p.Statistics)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
