package api

import (
	"net/http"

	"fxconverter/internal/rate/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(rateHandler *handler.Handler, metricsHandler http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/healthz"))

	if metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	router.Get("/api/v1/rates", rateHandler.GetRates)
	router.Post("/api/v1/rates/refresh", rateHandler.Refresh)
	router.Get("/api/v1/rates/supported-currencies", rateHandler.GetSupportedCodes)
	router.Get("/api/v1/convert", rateHandler.Convert)
	router.Get("/api/v1/history", rateHandler.GetHistory)
	return router
}
