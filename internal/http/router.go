package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/nutrition-etl/internal/http/handlers"
	httpMW "github.com/yungbote/nutrition-etl/internal/http/middleware"
	"github.com/yungbote/nutrition-etl/internal/observability"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	ProductHandler *httpH.ProductHandler
	QualityHandler *httpH.QualityHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.ProductHandler != nil {
			api.GET("/products/:code", cfg.ProductHandler.GetProduct)
		}
		if cfg.QualityHandler != nil {
			api.GET("/quality/reports", cfg.QualityHandler.ListReports)
			api.GET("/quality/reports/:id", cfg.QualityHandler.GetReport)
		}
	}
	return r
}
