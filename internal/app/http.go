package app

import (
	"github.com/yungbote/nutrition-etl/internal/http"
	httpH "github.com/yungbote/nutrition-etl/internal/http/handlers"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Product *httpH.ProductHandler
	Quality *httpH.QualityHandler
}

func (a *App) wireHandlers() Handlers {
	a.Log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(a.DB),
		Product: httpH.NewProductHandler(a.Repos.Lookup, a.Log),
		Quality: httpH.NewQualityHandler(a.Repos.QualityReports, a.Log),
	}
}

func (a *App) wireServer() *http.Server {
	handlers := a.wireHandlers()
	serviceName := ""
	if a.Cfg.Otel.Enabled {
		serviceName = a.Cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:            a.Log,
		Metrics:        a.Metrics,
		ServiceName:    serviceName,
		CORSOrigins:    a.Cfg.CORSOrigins,
		ProductHandler: handlers.Product,
		QualityHandler: handlers.Quality,
		HealthHandler:  handlers.Health,
	})
}
