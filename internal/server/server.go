package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/giftpool/internal/cache"
	"github.com/smallbiznis/giftpool/internal/catalog"
	"github.com/smallbiznis/giftpool/internal/config"
	"github.com/smallbiznis/giftpool/internal/credit"
	"github.com/smallbiznis/giftpool/internal/gift"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/notification"
	"github.com/smallbiznis/giftpool/internal/observability"
	obsmiddleware "github.com/smallbiznis/giftpool/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/giftpool/internal/observability/metrics"
	obstracing "github.com/smallbiznis/giftpool/internal/observability/tracing"
	"github.com/smallbiznis/giftpool/internal/providers"
	"github.com/smallbiznis/giftpool/internal/ratelimit"
	"github.com/smallbiznis/giftpool/internal/redisclient"
	"github.com/smallbiznis/giftpool/internal/settlement"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	redisclient.Module,
	cache.Module,
	ratelimit.Module,
	providers.Module,
	catalog.Module,
	gift.Module,
	credit.Module,
	notification.Module,
	settlement.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	settlements settlementdomain.Service
	giftRepo    giftdomain.Repository
	catalog     *catalog.Service
	limiter     *ratelimit.SettlementLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	Settlements settlementdomain.Service
	GiftRepo    giftdomain.Repository
	Catalog     *catalog.Service
	Limiter     *ratelimit.SettlementLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("http.server"),
		settlements: p.Settlements,
		giftRepo:    p.GiftRepo,
		catalog:     p.Catalog,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Settlements --------
	api.POST("/gifts/:id/settlements", s.SettlementRateLimit(), s.CreateSettlement)
	api.GET("/gifts/:id/settlements", s.ListSettlements)
	api.GET("/gifts/:id/refund-preview", s.RefundPreview)

	// -------- Gift cards --------
	api.GET("/giftcards/catalog", s.ListCatalog)

	// -------- Public impact page --------
	api.GET("/impact/:token", s.GetImpact)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
