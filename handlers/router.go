package handlers

import (
	"bus-bay-prediction-api/config"
	"bus-bay-prediction-api/middleware"
	"bus-bay-prediction-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	BusInfo  BusInfoProvider
	Arrivals ArrivalLister
	Cache    *services.CacheService
	DB       Pinger
	CORS     config.CORSConfig
}

func SetupRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(), middleware.SetupCORS(d.CORS))

	router.GET("/health", Health(d.DB, d.Cache))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	busInfo := NewBusInfoHandler(d.BusInfo)
	arrivals := NewArrivalsHandler(d.Arrivals, d.Cache)

	v1 := router.Group("/api/v1")
	v1.GET("/businfo", busInfo.GetLegacyBusInfo)

	v2 := router.Group("/api/v2")
	v2.GET("/businfo", busInfo.GetBusInfo)
	v2.GET("/businfo/predictions", busInfo.GetPredictions)
	v2.GET("/businfo/predictions/:busNumbers", busInfo.GetBatchPredictions)
	v2.GET("/businfo/live", LiveWebSocket(d.Cache))
	v2.GET("/arrivals", arrivals.GetArrivals)

	return router
}
